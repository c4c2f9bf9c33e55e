package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFileName is read from the import root; it lists extra patterns,
// one per line.
const IgnoreFileName = ".pvignore"

// rule is one parsed ignore line.
type rule struct {
	glob     string
	anchored bool // match the whole relative path rather than the base name
	dirOnly  bool // trailing '/': only directories match
	negate   bool // leading '!': re-include what earlier rules excluded
}

// IgnoreMatcher decides which host paths a bulk import skips.
//
// Patterns use doublestar syntax. A pattern without '/' matches the base
// name at any depth; one with '/' matches the path relative to the import
// root. A trailing '/' restricts the pattern to directories and a leading
// '!' re-includes a path an earlier pattern excluded. The last matching
// pattern wins.
type IgnoreMatcher struct {
	rules []rule
}

// NewIgnoreMatcher compiles patterns. Blank lines, '#' comments and invalid
// globs are dropped. The ignore file itself is always skipped.
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{rules: []rule{{glob: IgnoreFileName}}}
	for _, p := range patterns {
		if r, ok := parseRule(p); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		r.negate, line = true, rest
	}
	if rest, ok := strings.CutSuffix(line, "/"); ok {
		r.dirOnly, line = true, rest
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" || !doublestar.ValidatePattern(line) {
		return rule{}, false
	}
	r.glob = line
	r.anchored = strings.Contains(line, "/")
	return r, true
}

// Match reports whether the '/'-separated relative path rel is ignored.
func (m *IgnoreMatcher) Match(rel string, isDir bool) bool {
	base := path.Base(rel)
	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.anchored {
			subject = rel
		}
		if ok, _ := doublestar.Match(r.glob, subject); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// ParseIgnoreFile returns the lines of the ignore file at p, or nil when
// there is none.
func ParseIgnoreFile(p string) ([]string, error) {
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
