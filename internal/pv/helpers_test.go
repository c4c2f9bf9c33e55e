package pv_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"pinvault/internal/pv"
	"pinvault/internal/testutil"
)

func importFile(t *testing.T, v *testutil.TestVault, name, content, parentID string) *pv.ImportResult {
	t.Helper()
	res, err := v.Session.ImportContent(context.Background(), strings.NewReader(content), name, parentID)
	if err != nil {
		t.Fatalf("ImportContent(%q) error = %v", name, err)
	}
	return res
}

func mkdir(t *testing.T, v *testutil.TestVault, name, parentID string) *pv.Item {
	t.Helper()
	f, err := v.Session.CreateFolder(name, parentID)
	if err != nil {
		t.Fatalf("CreateFolder(%q) error = %v", name, err)
	}
	return f
}

func exportString(t *testing.T, v *testutil.TestVault, id string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := v.Session.ExportContent(context.Background(), id, &buf); err != nil {
		t.Fatalf("ExportContent(%s) error = %v", id, err)
	}
	return buf.String()
}

func names(items []*pv.Item) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

// failingIndexStore refuses to save while fail is set.
type failingIndexStore struct {
	pv.IndexStore
	fail atomic.Bool
}

var errSaveRefused = errors.New("disk full")

func (f *failingIndexStore) Save(key []byte, index *pv.Index) error {
	if f.fail.Load() {
		return errSaveRefused
	}
	return f.IndexStore.Save(key, index)
}

// fixedLocator reports the same coordinate for every image.
type fixedLocator struct{ lat, lon float64 }

func (l fixedLocator) Extract([]byte) (float64, float64, bool) { return l.lat, l.lon, true }

// recordingLogger keeps the messages of every Warn and Error call.
type recordingLogger struct {
	pv.NopLogger
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record(msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record(msg) }
func (l *recordingLogger) With(...any) pv.Logger      { return l }

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}
