package pv

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// Sealer wraps a writer so that everything written to it is encrypted with
// a passphrase. Closing the returned writer flushes the final ciphertext.
type Sealer interface {
	Seal(w io.Writer, passphrase string) (io.WriteCloser, error)
}

// ExportContent decrypts the content of a file item into w.
func (s *Session) ExportContent(ctx context.Context, id string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := s.Get(id)
	if err != nil {
		return err
	}
	if it.IsFolder() {
		return fmt.Errorf("item %s is a folder", id)
	}
	if _, err := s.blobs.Get(id, w); err != nil {
		return fmt.Errorf("exporting %s: %w", id, err)
	}
	return nil
}

// exportEntry is one file of an export plan with its path relative to the
// export root, using forward slashes.
type exportEntry struct {
	item *Item
	rel  string
}

// ExportTo decrypts ids into dir, recreating folder structure below any
// folder in ids. Existing files are never overwritten; clashing names get a
// numeric suffix. Cancellation is checked between files and the files
// already written stay in place. Returns the paths written.
func (s *Session) ExportTo(ctx context.Context, ids []string, dir string) ([]string, error) {
	plan, err := s.exportPlan(ids)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, e := range plan {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		dest, err := s.exportFile(e, dir)
		if err != nil {
			return written, err
		}
		written = append(written, dest)
	}

	s.logger.Info("export finished", "dir", dir, "files", len(written))
	return written, nil
}

func (s *Session) exportFile(e exportEntry, dir string) (string, error) {
	if err := checkExportPath(e.rel); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, filepath.FromSlash(e.rel))
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", &IOError{Op: "mkdir", Path: parent, Err: err}
	}
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(parent, uniqueName(filepath.Base(dest), func(n string) bool {
			_, err := os.Stat(filepath.Join(parent, n))
			return err == nil
		}))
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", &IOError{Op: "create", Path: dest, Err: err}
	}

	success := false
	defer func() {
		if !success {
			os.Remove(dest)
		}
	}()

	if _, err := s.blobs.Get(e.item.ID, f); err != nil {
		f.Close()
		return "", fmt.Errorf("exporting %s: %w", e.item.ID, err)
	}
	if err := f.Close(); err != nil {
		return "", &IOError{Op: "close", Path: dest, Err: err}
	}
	if err := s.chtimes(dest, e.item.ModifiedAt, e.item.ModifiedAt); err != nil {
		s.logger.Warn("keeping export timestamp", "path", dest, "error", err)
	}

	success = true
	return dest, nil
}

// ExportSealed writes ids as a tar archive encrypted with passphrase. The
// archive keeps the folder structure below any folder in ids.
func (s *Session) ExportSealed(ctx context.Context, ids []string, w io.Writer, passphrase string) (int, error) {
	if s.sealer == nil {
		return 0, fmt.Errorf("sealed export is not configured")
	}
	plan, err := s.exportPlan(ids)
	if err != nil {
		return 0, err
	}

	sealed, err := s.sealer.Seal(w, passphrase)
	if err != nil {
		return 0, fmt.Errorf("sealing export: %w", err)
	}
	tw := tar.NewWriter(sealed)

	count := 0
	for _, e := range plan {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := checkExportPath(e.rel); err != nil {
			return count, err
		}
		hdr := &tar.Header{
			Name:    e.rel,
			Mode:    0644,
			Size:    e.item.Size,
			ModTime: e.item.ModifiedAt,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return count, fmt.Errorf("writing archive header for %s: %w", e.item.ID, err)
		}
		if _, err := s.blobs.Get(e.item.ID, tw); err != nil {
			return count, fmt.Errorf("archiving %s: %w", e.item.ID, err)
		}
		count++
	}

	if err := tw.Close(); err != nil {
		return count, fmt.Errorf("finishing archive: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return count, fmt.Errorf("finishing sealed export: %w", err)
	}

	s.logger.Info("sealed export finished", "files", count)
	return count, nil
}

// exportPlan expands ids into the non-deleted files to export. Files keep
// their name at the top level; folder contents are nested under the folder name.
func (s *Session) exportPlan(ids []string) ([]exportEntry, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	var plan []exportEntry
	var walk func(it *Item, prefix string)
	walk = func(it *Item, prefix string) {
		if it.Deleted {
			return
		}
		rel := path.Join(prefix, it.Name)
		if !it.IsFolder() {
			plan = append(plan, exportEntry{item: it, rel: rel})
			return
		}
		for _, child := range snap.Children(it.ID) {
			walk(child, rel)
		}
	}

	for _, id := range ids {
		it, err := snap.Get(id)
		if err != nil {
			return nil, err
		}
		walk(it, "")
	}
	return plan, nil
}

// checkExportPath rejects plan paths that would land outside the export
// root. Indexes written before names were validated may still hold "..".
func checkExportPath(rel string) error {
	if p := filepath.FromSlash(rel); p == "." || !filepath.IsLocal(p) {
		return fmt.Errorf("export path %q leaves the export directory: %w", rel, ErrInvalidName)
	}
	return nil
}
