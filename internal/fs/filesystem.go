package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Source is one host file selected for import.
type Source struct {
	// Path is the absolute host path.
	Path string
	// Dir is the directory of the file relative to the import root, using
	// '/' separators. Empty for files directly under the root.
	Dir     string
	Name    string
	Size    int64
	ModTime time.Time
}

// Scanner discovers host files to import.
type Scanner struct {
	patterns []string
}

// NewScanner creates a scanner that skips files matching patterns, plus the
// patterns of any .pvignore file at the import root.
func NewScanner(patterns []string) *Scanner {
	return &Scanner{patterns: patterns}
}

// Resolve makes rawPath absolute and rejects special files.
func Resolve(rawPath string) (string, fs.FileInfo, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return "", nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return "", nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return "", nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return "", nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return "", nil, fmt.Errorf("sockets not supported: %s", absPath)
	}
	return absPath, info, nil
}

// Scan returns the regular files at rawPath. A file path yields itself. A
// directory yields its files, descending into subdirectories when recursive
// is set. Ignored directories are skipped whole. Results are in walk order.
func (s *Scanner) Scan(rawPath string, recursive bool) ([]Source, error) {
	root, info, err := Resolve(rawPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []Source{newSource(root, "", info)}, nil
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string{}, s.patterns...), filePatterns...))

	var sources []Source
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if !recursive || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		dir := path.Dir(rel)
		if dir == "." {
			dir = ""
		}
		sources = append(sources, newSource(p, dir, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return sources, nil
}

// Open opens a source for reading.
func Open(src Source) (io.ReadCloser, error) {
	return os.Open(src.Path)
}

func newSource(path, dir string, info fs.FileInfo) Source {
	return Source{
		Path:    path,
		Dir:     dir,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
