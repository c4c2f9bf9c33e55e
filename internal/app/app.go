package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"pinvault/internal/blobstore"
	"pinvault/internal/config"
	"pinvault/internal/database"
	"pinvault/internal/encryption"
	"pinvault/internal/fs"
	"pinvault/internal/indexstore"
	"pinvault/internal/pv"
	"pinvault/internal/thumbnail"
)

// ErrIndexUnreadable is returned by Unlock when the stored index could not be
// decrypted or parsed and the caller did not allow starting from an empty index.
var ErrIndexUnreadable = errors.New("vault index is unreadable (wrong PIN or damaged index)")

// UnlockOptions tunes Unlock.
type UnlockOptions struct {
	// Verbose mirrors the log to stderr.
	Verbose bool
	// AllowRecovery accepts an unreadable index and starts from an empty one.
	// The next mutation overwrites the unreadable document.
	AllowRecovery bool
}

// PVApp is the application layer between the CLI and pv.Session.
// It constructs all dependencies from config, exposes bulk operations that
// accept host paths, and releases every resource on Close.
type PVApp struct {
	cfg       *config.Config
	session   *pv.Session
	dbs       *database.Databases
	thumbs    *thumbnail.Pipeline
	scanner   *fs.Scanner
	logger    pv.Logger
	logFile   *os.File
	sessionID string
}

// Unlock derives the vault key from pin, wires the stores selected by cfg
// and opens a session. The caller must call Close when done.
func Unlock(ctx context.Context, cfg *config.Config, pin string, opts UnlockOptions) (*PVApp, error) {
	if err := encryption.ValidatePIN(pin, cfg.PINLength); err != nil {
		return nil, err
	}

	codec, err := encryption.NewCodecFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating codec: %w", err)
	}

	if err := os.MkdirAll(cfg.VaultRoot, 0700); err != nil {
		return nil, &pv.IOError{Op: "mkdir", Path: cfg.VaultRoot, Err: err}
	}

	store, err := blobstore.NewBlobStoreFromConfig(ctx, cfg.Blobs, cfg.VaultRoot)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}
	if err := store.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("blob store not ready: %w", err)
	}

	dbs, err := database.NewDatabasesFromConfig(cfg.Database, cfg.VaultRoot)
	if err != nil {
		return nil, fmt.Errorf("opening databases: %w", err)
	}

	sessionID := uuid.New().String()
	slogger, logFile, err := newLogger(cfg.LogDir, sessionID, opts.Verbose)
	if err != nil {
		dbs.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	key := encryption.DeriveKey([]byte(pin))
	blobs := pv.NewBlobs(store, codec, key)

	thumbOpts := thumbnail.OptionsFromConfig(cfg.Thumbnails)
	thumbOpts.Logger = logger
	pipeline, err := thumbnail.NewPipeline(blobs, dbs.Thumbs, thumbOpts)
	if err != nil {
		logFile.Close()
		dbs.Close()
		return nil, fmt.Errorf("creating thumbnail pipeline: %w", err)
	}

	session, err := pv.Open(key, pv.SessionDeps{
		Index:       indexstore.NewFileIndexStore(cfg.VaultRoot, codec),
		Blobs:       blobs,
		Thumbs:      dbs.Thumbs,
		Meta:        dbs.Meta,
		Thumbnailer: pipeline,
		Locator:     pv.ExifLocator{},
		Sealer:      encryption.NewAgeSealer(),
		Logger:      logger.With("component", "session"),
	})
	if err != nil {
		logFile.Close()
		dbs.Close()
		return nil, fmt.Errorf("opening session: %w", err)
	}

	a := &PVApp{
		cfg:       cfg,
		session:   session,
		dbs:       dbs,
		thumbs:    pipeline,
		scanner:   fs.NewScanner(cfg.Import.Ignore),
		logger:    logger,
		logFile:   logFile,
		sessionID: sessionID,
	}

	if rec := session.Recovered(); rec != nil && !opts.AllowRecovery {
		a.Close()
		return nil, fmt.Errorf("%w: %w", ErrIndexUnreadable, rec)
	}
	return a, nil
}

// Session returns the unlocked vault session.
func (a *PVApp) Session() *pv.Session { return a.session }

// Thumbnails returns the thumbnail pipeline, for state queries.
func (a *PVApp) Thumbnails() *thumbnail.Pipeline { return a.thumbs }

// SessionID identifies this unlock in the log.
func (a *PVApp) SessionID() string { return a.sessionID }

// Recovered reports whether the session started from an empty index because
// the stored one was unreadable.
func (a *PVApp) Recovered() error { return a.session.Recovered() }

// Close locks the vault and closes the databases and the log file.
func (a *PVApp) Close() error {
	var firstErr error
	if err := a.session.Close(); err != nil {
		firstErr = fmt.Errorf("closing session: %w", err)
	}
	if err := a.dbs.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing databases: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
