package pv_test

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"pinvault/internal/encryption"
	"pinvault/internal/indexstore"
	"pinvault/internal/pv"
	"pinvault/internal/testutil"
)

// exportTree builds:
//
//	Trips/
//	  beach.jpg
//	  Paris/
//	    tower.jpg
//	    old.jpg (deleted)
//	notes.pdf
func exportTree(t *testing.T) (*testutil.TestVault, *pv.Item, *pv.Item) {
	t.Helper()
	v := testutil.NewTestVault(t)
	trips := mkdir(t, v, "Trips", "")
	importFile(t, v, "beach.jpg", "sand", trips.ID)
	paris := mkdir(t, v, "Paris", trips.ID)
	importFile(t, v, "tower.jpg", "iron", paris.ID)
	old := importFile(t, v, "old.jpg", "gone", paris.ID).Item
	notes := importFile(t, v, "notes.pdf", "%PDF", "").Item
	if err := v.Session.SoftDelete([]string{old.ID}); err != nil {
		t.Fatal(err)
	}
	return v, trips, notes
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", dir, err)
	}
	return out
}

func TestExportContent(t *testing.T) {
	v, trips, notes := exportTree(t)

	if got := exportString(t, v, notes.ID); got != "%PDF" {
		t.Errorf("ExportContent() = %q", got)
	}
	if err := v.Session.ExportContent(context.Background(), trips.ID, io.Discard); err == nil {
		t.Error("ExportContent(folder) expected error")
	}
	if err := v.Session.ExportContent(context.Background(), "missing", io.Discard); !errors.Is(err, pv.ErrNotFound) {
		t.Errorf("ExportContent(missing) error = %v, want ErrNotFound", err)
	}
}

func TestExportContent_MissingBlob(t *testing.T) {
	v, _, notes := exportTree(t)
	if err := v.Store.Delete(pv.AreaBlobs, notes.ID); err != nil {
		t.Fatal(err)
	}

	err := v.Session.ExportContent(context.Background(), notes.ID, io.Discard)
	var blobErr *pv.BlobError
	if !errors.As(err, &blobErr) || blobErr.ID != notes.ID {
		t.Fatalf("ExportContent() error = %v, want BlobError for %s", err, notes.ID)
	}
	if !errors.Is(err, pv.ErrNotFound) {
		t.Errorf("ExportContent() error = %v, want ErrNotFound", err)
	}
}

func TestExportTo(t *testing.T) {
	v, trips, notes := exportTree(t)
	dir := t.TempDir()

	written, err := v.Session.ExportTo(context.Background(), []string{trips.ID, notes.ID}, dir)
	if err != nil {
		t.Fatalf("ExportTo() error = %v", err)
	}
	if len(written) != 3 {
		t.Errorf("ExportTo() wrote %v, want 3 files", written)
	}

	want := map[string]string{
		"Trips/beach.jpg":       "sand",
		"Trips/Paris/tower.jpg": "iron",
		"notes.pdf":             "%PDF",
	}
	got := readTree(t, dir)
	if len(got) != len(want) {
		t.Errorf("exported tree = %v, want %v", got, want)
	}
	for rel, content := range want {
		if got[rel] != content {
			t.Errorf("%s = %q, want %q", rel, got[rel], content)
		}
	}

	info, err := os.Stat(filepath.Join(dir, "notes.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(notes.ModifiedAt) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), notes.ModifiedAt)
	}
}

func TestExportTo_NeverOverwrites(t *testing.T) {
	v, _, notes := exportTree(t)
	dir := t.TempDir()
	existing := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(existing, []byte("mine"), 0644); err != nil {
		t.Fatal(err)
	}

	written, err := v.Session.ExportTo(context.Background(), []string{notes.ID}, dir)
	if err != nil {
		t.Fatalf("ExportTo() error = %v", err)
	}
	if want := []string{filepath.Join(dir, "notes(1).pdf")}; !slices.Equal(written, want) {
		t.Errorf("ExportTo() = %v, want %v", written, want)
	}
	if data, _ := os.ReadFile(existing); string(data) != "mine" {
		t.Errorf("existing file overwritten with %q", data)
	}
}

func TestExportTo_Cancelled(t *testing.T) {
	v, trips, _ := exportTree(t)
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	written, err := v.Session.ExportTo(ctx, []string{trips.ID}, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ExportTo() error = %v, want context.Canceled", err)
	}
	if len(written) != 0 || len(readTree(t, dir)) != 0 {
		t.Errorf("cancelled export wrote %v", written)
	}
}

func TestExportSealed(t *testing.T) {
	v, trips, notes := exportTree(t)
	const passphrase = "correct horse battery staple"

	var sealed bytes.Buffer
	n, err := v.Session.ExportSealed(context.Background(), []string{trips.ID, notes.ID}, &sealed, passphrase)
	if err != nil {
		t.Fatalf("ExportSealed() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ExportSealed() = %d files, want 3", n)
	}
	if bytes.Contains(sealed.Bytes(), []byte("sand")) {
		t.Error("sealed archive contains plaintext")
	}

	sealer := encryption.NewAgeSealerWithWorkFactor(10)
	if _, err := sealer.Unseal(bytes.NewReader(sealed.Bytes()), "wrong"); err == nil {
		t.Error("Unseal() with wrong passphrase expected error")
	}

	r, err := sealer.Unseal(bytes.NewReader(sealed.Bytes()), passphrase)
	if err != nil {
		t.Fatalf("Unseal() error = %v", err)
	}
	got := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar Next() error = %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		got[hdr.Name] = string(data)
	}

	want := map[string]string{
		"Trips/beach.jpg":       "sand",
		"Trips/Paris/tower.jpg": "iron",
		"notes.pdf":             "%PDF",
	}
	if len(got) != len(want) {
		t.Errorf("archive = %v, want %v", got, want)
	}
	for name, content := range want {
		if got[name] != content {
			t.Errorf("archive %s = %q, want %q", name, got[name], content)
		}
	}
}

func TestExportSealed_NotConfigured(t *testing.T) {
	v := testutil.NewTestVault(t, func(d *pv.SessionDeps) { d.Sealer = nil })
	it := importFile(t, v, "a.jpg", "a", "").Item
	if _, err := v.Session.ExportSealed(context.Background(), []string{it.ID}, io.Discard, "pw"); err == nil {
		t.Error("ExportSealed() expected error without a sealer")
	}
}

func TestCreateFolder_RejectsDotNames(t *testing.T) {
	v := testutil.NewTestVault(t)
	for _, name := range []string{".", ".."} {
		if _, err := v.Session.CreateFolder(name, ""); !errors.Is(err, pv.ErrInvalidName) {
			t.Errorf("CreateFolder(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

// legacyDotVault opens a vault whose stored index predates name validation
// and holds a folder named "..".
func legacyDotVault(t *testing.T) *testutil.TestVault {
	t.Helper()
	const doc = `{"version":1,"items":[
		{"id":"up","name":"..","kind":"folder","modified_at":"2024-01-15T10:30:00Z","size":0},
		{"id":"esc","name":"escaped.txt","kind":"unknown","parent_id":"up","modified_at":"2024-01-15T10:30:00Z","size":4}
	]}`
	index := pv.NewIndex()
	if err := json.Unmarshal([]byte(doc), index); err != nil {
		t.Fatalf("decoding index: %v", err)
	}
	store := indexstore.NewMemoryIndexStore(encryption.NewTestCodec())
	if err := store.Save(testutil.TestKey(), index); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	v := testutil.NewTestVault(t, func(d *pv.SessionDeps) { d.Index = store })
	if _, _, err := v.Blobs.Put("esc", strings.NewReader("data"), "escaped.txt"); err != nil {
		t.Fatalf("Blobs.Put() error = %v", err)
	}
	return v
}

func TestExportTo_StaysInsideDir(t *testing.T) {
	v := legacyDotVault(t)
	root := t.TempDir()
	dir := filepath.Join(root, "export")

	written, err := v.Session.ExportTo(context.Background(), []string{"up"}, dir)
	if !errors.Is(err, pv.ErrInvalidName) {
		t.Fatalf("ExportTo() error = %v, want ErrInvalidName", err)
	}
	if len(written) != 0 {
		t.Errorf("ExportTo() wrote %v", written)
	}
	if _, err := os.Stat(filepath.Join(root, "escaped.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file written outside the export directory: %v", err)
	}
}

func TestExportSealed_StaysInsideArchiveRoot(t *testing.T) {
	v := legacyDotVault(t)

	n, err := v.Session.ExportSealed(context.Background(), []string{"up"}, io.Discard, "passphrase")
	if !errors.Is(err, pv.ErrInvalidName) {
		t.Fatalf("ExportSealed() error = %v, want ErrInvalidName", err)
	}
	if n != 0 {
		t.Errorf("ExportSealed() archived %d files, want 0", n)
	}
}

func TestExportTo_TimestampFailureIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	v := testutil.NewTestVault(t, func(d *pv.SessionDeps) { d.Logger = logger })
	notes := importFile(t, v, "notes.txt", "hello", "").Item
	v.Session.SetChtimes(func(string, time.Time, time.Time) error {
		return errors.New("operation not permitted")
	})

	dir := t.TempDir()
	written, err := v.Session.ExportTo(context.Background(), []string{notes.ID}, dir)
	if err != nil {
		t.Fatalf("ExportTo() error = %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("ExportTo() wrote %d files, want 1", len(written))
	}
	got, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("exported content = %q, want %q", got, "hello")
	}
	if !slices.Contains(logger.Messages(), "keeping export timestamp") {
		t.Errorf("logged %q, want the timestamp failure", logger.Messages())
	}
}
