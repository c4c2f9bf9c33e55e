package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Defaults applied to zero-valued settings.
const (
	DefaultPINLength          = 4
	DefaultThumbnailWorkers   = 3
	DefaultThumbnailSize      = 256
	DefaultThumbnailQuality   = 70
	DefaultThumbnailCacheSize = 512
	DefaultMaxSourceBytes     = 512 << 20
)

// Config represents the main configuration for pv.
type Config struct {
	VaultRoot  string           `toml:"vault_root" validate:"required"`
	LogDir     string           `toml:"log_dir" validate:"required"`
	PINLength  int              `toml:"pin_length" validate:"min=4,max=12"`
	Encryption EncryptionConfig `toml:"encryption"`
	Blobs      BlobStoreConfig  `toml:"blobs"`
	Database   DatabaseConfig   `toml:"database"`
	Thumbnails ThumbnailConfig  `toml:"thumbnails"`
	Import     ImportConfig     `toml:"import"`
}

// EncryptionConfig selects the blob codec.
type EncryptionConfig struct {
	Cipher string `toml:"cipher" validate:"omitempty,oneof=aes-cbc xchacha20poly1305 test"` // "aes-cbc" (default), "xchacha20poly1305" or "test"
}

// BlobStoreConfig represents configuration for the blob storage backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobStoreConfig struct {
	Type string `toml:"type" validate:"required,oneof=filesystem memory s3"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty" validate:"required_if=Type s3"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty" validate:"required_with=S3SecretAccessKey"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty" validate:"required_with=S3AccessKeyID"`
}

// DatabaseConfig selects where the thumbnail cache and metadata databases live.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type string `toml:"type" validate:"required,oneof=sqlite memory"` // "sqlite" stores thumb_cache.db and meta.db under the vault root
}

// ThumbnailConfig controls the preview pipeline.
type ThumbnailConfig struct {
	Workers        int    `toml:"workers" validate:"min=1,max=64"`
	Size           int    `toml:"size" validate:"min=16,max=4096"`
	Quality        int    `toml:"quality" validate:"min=1,max=100"`
	CacheEntries   int    `toml:"cache_entries" validate:"min=0"`
	MaxSourceBytes int64  `toml:"max_source_bytes" validate:"min=0"`
	FFmpegPath     string `toml:"ffmpeg_path,omitempty"`
	PDFToPPMPath   string `toml:"pdftoppm_path,omitempty"`
}

// ImportConfig holds settings for bulk imports from the host filesystem.
type ImportConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		VaultRoot: filepath.Join(baseDir, "vault"),
		LogDir:    filepath.Join(baseDir, "log"),
		Blobs:     BlobStoreConfig{Type: "filesystem"},
		Database:  DatabaseConfig{Type: "sqlite"},
		Import: ImportConfig{
			Ignore: []string{"**/.DS_Store", "**/Thumbs.db", ".git/**"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued settings with their defaults.
func (c *Config) ApplyDefaults() {
	if c.PINLength == 0 {
		c.PINLength = DefaultPINLength
	}
	if c.Encryption.Cipher == "" {
		c.Encryption.Cipher = "aes-cbc"
	}
	if c.Thumbnails.Workers == 0 {
		c.Thumbnails.Workers = DefaultThumbnailWorkers
	}
	if c.Thumbnails.Size == 0 {
		c.Thumbnails.Size = DefaultThumbnailSize
	}
	if c.Thumbnails.Quality == 0 {
		c.Thumbnails.Quality = DefaultThumbnailQuality
	}
	if c.Thumbnails.CacheEntries == 0 {
		c.Thumbnails.CacheEntries = DefaultThumbnailCacheSize
	}
	if c.Thumbnails.MaxSourceBytes == 0 {
		c.Thumbnails.MaxSourceBytes = DefaultMaxSourceBytes
	}
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and applies defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
