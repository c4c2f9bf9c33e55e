package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// pinEnv supplies the PIN when stdin is not a terminal, for scripted use.
const pinEnv = "PV_PIN"

var (
	okMark   = color.GreenString("✓")
	failMark = color.RedString("✗")
	infoMark = color.CyanString("→")
)

// readSecret prompts for input without echoing it.
func readSecret(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("cannot read %s: stdin is not a terminal", prompt)
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return secret, nil
}

// readPIN returns the PIN from PV_PIN, or prompts for it on the terminal.
func readPIN() (string, error) {
	if pin := os.Getenv(pinEnv); pin != "" {
		return pin, nil
	}
	pin, err := readSecret("PIN: ")
	if err != nil {
		return "", fmt.Errorf("%w (or set %s)", err, pinEnv)
	}
	return string(pin), nil
}

// readNewPassphrase prompts twice and requires both entries to match.
func readNewPassphrase() (string, error) {
	first, err := readSecret("Archive passphrase: ")
	if err != nil {
		return "", err
	}
	if len(first) == 0 {
		return "", errors.New("passphrase must not be empty")
	}
	second, err := readSecret("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if !bytes.Equal(first, second) {
		return "", errors.New("passphrases do not match")
	}
	return string(first), nil
}

// spinnerColor is the color of every progress spinner.
const spinnerColor = "cyan"

// startSpinner shows message with a spinner on stderr until stop is called.
// stop prints final as the closing line. No spinner is drawn in verbose
// mode, where the log is mirrored to stderr.
func startSpinner(message string) (stop func(final string)) {
	s, err := newSpinner(message, spinnerColor)
	if err != nil && verbose {
		fmt.Fprintf(os.Stderr, "spinner drawn without color: %v\n", err)
	}

	if verbose {
		return func(final string) { fmt.Fprint(os.Stderr, final) }
	}
	s.Start()
	return func(final string) {
		s.FinalMSG = final
		s.Stop()
	}
}

// newSpinner always returns a usable spinner. The error reports a color the
// spinner library rejected, in which case the spinner stays uncolored.
func newSpinner(message, col string) (*spinner.Spinner, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = os.Stderr
	s.Suffix = " " + message
	if err := s.Color(col); err != nil {
		return s, fmt.Errorf("setting spinner color %q: %w", col, err)
	}
	return s, nil
}
