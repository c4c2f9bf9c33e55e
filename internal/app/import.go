package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"pinvault/internal/fs"
	"pinvault/internal/pv"
)

// ImportPath imports the file or directory at rawPath into the vault folder
// parentID ("" for root). Directory structure below rawPath is mirrored as
// vault folders, reusing existing folders of the same name. Failures are
// per file; only cancellation or a scan error aborts the batch. onEvent, if
// not nil, is called after every file.
func (a *PVApp) ImportPath(ctx context.Context, rawPath, parentID string, recursive bool, onEvent func(ImportEvent)) (ImportSummary, error) {
	var summary ImportSummary

	sources, err := a.scanner.Scan(rawPath, recursive)
	if err != nil {
		return summary, fmt.Errorf("scanning %s: %w", rawPath, err)
	}
	a.logger.Info("bulk import started", "path", rawPath, "files", len(sources))

	folders := map[string]string{"": parentID}
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		var res *pv.ImportResult
		folderID, err := a.ensureFolder(folders, src.Dir, &summary)
		if err == nil {
			res, err = a.importSource(ctx, src, folderID)
		}
		if err != nil {
			a.logger.Warn("import failed", "path", src.Path, "error", err)
		}
		summary.record(res, err)

		if onEvent != nil {
			onEvent(ImportEvent{Source: src, Result: res, Err: err, Done: i + 1, Total: len(sources)})
		}
	}

	a.logger.Info("bulk import finished", "path", rawPath, "summary", summary.String())
	return summary, nil
}

// importSource streams one host file into the vault. The file is stat'ed
// again afterwards; if it changed while being read, the new item is purged
// and an error is returned.
func (a *PVApp) importSource(ctx context.Context, src fs.Source, folderID string) (*pv.ImportResult, error) {
	f, err := fs.Open(src)
	if err != nil {
		return nil, err
	}
	res, err := a.session.ImportContent(ctx, f, src.Name, folderID)
	f.Close()
	if err != nil {
		return nil, err
	}
	if res.Outcome == pv.ImportSkipped {
		return res, nil
	}

	info, err := os.Stat(src.Path)
	if err == nil && (info.Size() != src.Size || !info.ModTime().Equal(src.ModTime)) {
		err = fmt.Errorf("file changed during import")
	}
	if err != nil {
		if _, perr := a.session.Purge([]string{res.Item.ID}); perr != nil {
			a.logger.Warn("dropping partial import", "id", res.Item.ID, "error", perr)
		}
		return nil, fmt.Errorf("importing %s: %w", src.Path, err)
	}
	return res, nil
}

// ensureFolder returns the vault folder mirroring the relative host
// directory dir, creating missing folders along the way.
func (a *PVApp) ensureFolder(folders map[string]string, dir string, summary *ImportSummary) (string, error) {
	if id, ok := folders[dir]; ok {
		return id, nil
	}

	parentID, err := a.ensureFolder(folders, parentDir(dir), summary)
	if err != nil {
		return "", err
	}
	name := path.Base(dir)

	existing, err := a.session.ListChildren(parentID, pv.ListOptions{})
	if err != nil {
		return "", err
	}
	for _, it := range existing {
		if it.IsFolder() && it.Name == name {
			folders[dir] = it.ID
			return it.ID, nil
		}
	}

	created, err := a.session.CreateFolder(name, parentID)
	if err != nil {
		return "", err
	}
	summary.Folders++
	folders[dir] = created.ID
	return created.ID, nil
}

func parentDir(dir string) string {
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		return dir[:i]
	}
	return ""
}

// Lookup resolves a '/'-separated vault path such as "Trips/Paris/tower.jpg"
// to an item. Live items win over trashed ones of the same name, so trashed
// items stay addressable for restore and purge. An id is accepted as well.
func (a *PVApp) Lookup(vaultPath string) (*pv.Item, error) {
	if it, err := a.session.Get(vaultPath); err == nil {
		return it, nil
	}

	var current *pv.Item
	parentID := ""
	for _, part := range strings.Split(strings.Trim(vaultPath, "/"), "/") {
		if part == "" {
			continue
		}
		children, err := a.session.ListChildren(parentID, pv.ListOptions{IncludeDeleted: true})
		if err != nil {
			return nil, err
		}
		current = nil
		for _, it := range children {
			if it.Name != part {
				continue
			}
			if current == nil || (current.Deleted && !it.Deleted) {
				current = it
			}
		}
		if current == nil {
			return nil, fmt.Errorf("%s: %w", vaultPath, pv.ErrNotFound)
		}
		parentID = current.ID
	}
	if current == nil {
		return nil, fmt.Errorf("%q is the vault root: %w", vaultPath, pv.ErrNotFound)
	}
	return current, nil
}

// LookupFolder resolves vaultPath to a folder id. An empty path or "/" is
// the root.
func (a *PVApp) LookupFolder(vaultPath string) (string, error) {
	if strings.Trim(vaultPath, "/") == "" {
		return "", nil
	}
	it, err := a.Lookup(vaultPath)
	if err != nil {
		return "", err
	}
	if !it.IsFolder() {
		return "", fmt.Errorf("%s is not a folder: %w", vaultPath, pv.ErrInvalidMove)
	}
	return it.ID, nil
}

// LookupAll resolves several vault paths to ids.
func (a *PVApp) LookupAll(vaultPaths []string) ([]string, error) {
	ids := make([]string, 0, len(vaultPaths))
	for _, p := range vaultPaths {
		it, err := a.Lookup(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// PathOf returns the '/'-separated vault path of id, for display.
func (a *PVApp) PathOf(id string) string {
	var parts []string
	for id != "" {
		it, err := a.session.Get(id)
		if err != nil {
			break
		}
		parts = append(parts, it.Name)
		id = it.ParentID
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}
