package database

import (
	"fmt"
	"path/filepath"

	"pinvault/internal/config"
)

const (
	ThumbCacheFile = "thumb_cache.db"
	MetaFile       = "meta.db"
)

// Databases bundles the side databases of one vault.
type Databases struct {
	Thumbs *ThumbCacheDB
	Meta   *MetaDB
}

// Close closes both databases and returns the first error.
func (d *Databases) Close() error {
	var firstErr error
	if d.Thumbs != nil {
		if err := d.Thumbs.Close(); err != nil {
			firstErr = err
		}
	}
	if d.Meta != nil {
		if err := d.Meta.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDatabasesFromConfig opens the thumbnail cache and metadata databases
// based on the database config type.
func NewDatabasesFromConfig(cfg config.DatabaseConfig, vaultRoot string) (*Databases, error) {
	var thumbPath, metaPath string
	switch cfg.Type {
	case "sqlite":
		if vaultRoot == "" {
			return nil, fmt.Errorf("vault_root required for sqlite database")
		}
		thumbPath = filepath.Join(vaultRoot, ThumbCacheFile)
		metaPath = filepath.Join(vaultRoot, MetaFile)
	case "memory":
		thumbPath = ":memory:"
		metaPath = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	thumbs, err := NewThumbCacheDB(thumbPath)
	if err != nil {
		return nil, err
	}
	meta, err := NewMetaDB(metaPath)
	if err != nil {
		thumbs.Close()
		return nil, err
	}
	return &Databases{Thumbs: thumbs, Meta: meta}, nil
}
