package pv

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// buildIndex creates:
//
//	trips/         (f1)
//	  paris/       (f2)
//	    tower.jpg  (i2)
//	  beach.jpg    (i1)
//	notes.pdf      (i3)
func buildIndex(t *testing.T) *Index {
	t.Helper()
	x := NewIndex()
	mustFolder := func(id, name, parent string) {
		if _, err := x.CreateFolder(id, name, parent, t0); err != nil {
			t.Fatalf("CreateFolder(%s) error = %v", id, err)
		}
	}
	mustItem := func(id, name, parent string, kind Kind) {
		it := &Item{ID: id, Name: name, Kind: kind, ParentID: parent, ModifiedAt: t0, Size: 10, ContentHash: "h-" + id}
		if err := x.AddItem(it); err != nil {
			t.Fatalf("AddItem(%s) error = %v", id, err)
		}
	}
	mustFolder("f1", "trips", "")
	mustFolder("f2", "paris", "f1")
	mustItem("i1", "beach.jpg", "f1", KindImage)
	mustItem("i2", "tower.jpg", "f2", KindImage)
	mustItem("i3", "notes.pdf", "", KindDocument)
	return x
}

func ids(items []*Item) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestIndex_CreateFolder(t *testing.T) {
	tests := []struct {
		name     string
		folder   string
		parentID string
		wantErr  error
	}{
		{name: "at root", folder: "new", parentID: ""},
		{name: "nested", folder: "new", parentID: "f2"},
		{name: "parent missing", folder: "new", parentID: "nope", wantErr: ErrNotFound},
		{name: "parent is a file", folder: "new", parentID: "i1", wantErr: ErrInvalidMove},
		{name: "empty name", folder: "", parentID: "", wantErr: ErrInvalidName},
		{name: "name with slash", folder: "a/b", parentID: "", wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			x := buildIndex(t)
			before := x.Len()

			it, err := x.CreateFolder("new-id", tt.folder, tt.parentID, t0)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateFolder() error = %v, want %v", err, tt.wantErr)
				}
				if x.Len() != before {
					t.Error("failed CreateFolder() changed the index")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateFolder() error = %v", err)
			}
			if !it.IsFolder() || it.ParentID != tt.parentID {
				t.Errorf("CreateFolder() = %+v", it)
			}
		})
	}
}

func TestIndex_AddItem(t *testing.T) {
	tests := []struct {
		name    string
		item    *Item
		wantErr bool
	}{
		{name: "valid", item: &Item{ID: "n", Name: "a.jpg", Kind: KindImage, ParentID: "f1"}},
		{name: "duplicate id", item: &Item{ID: "i1", Name: "a.jpg", Kind: KindImage}, wantErr: true},
		{name: "folder kind", item: &Item{ID: "n", Name: "dir", Kind: KindFolder}, wantErr: true},
		{name: "unknown kind value", item: &Item{ID: "n", Name: "a", Kind: "blob"}, wantErr: true},
		{name: "missing parent", item: &Item{ID: "n", Name: "a.jpg", Kind: KindImage, ParentID: "zz"}, wantErr: true},
		{name: "empty id", item: &Item{Name: "a.jpg", Kind: KindImage}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			x := buildIndex(t)
			err := x.AddItem(tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("AddItem() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIndex_AddItemNormalizesTags(t *testing.T) {
	x := NewIndex()
	err := x.AddItem(&Item{ID: "a", Name: "a.jpg", Kind: KindImage, Tags: []string{" Summer ", "summer", "", "beach"}})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	it, _ := x.Get("a")
	if !slices.Equal(it.Tags, []string{"Summer", "beach"}) {
		t.Errorf("Tags = %v", it.Tags)
	}
}

func TestIndex_Move(t *testing.T) {
	tests := []struct {
		name      string
		ids       []string
		newParent string
		wantErr   error
	}{
		{name: "file to root", ids: []string{"i2"}, newParent: ""},
		{name: "folder into sibling", ids: []string{"f2"}, newParent: ""},
		{name: "batch", ids: []string{"i1", "i3"}, newParent: "f2"},
		{name: "into itself", ids: []string{"f1"}, newParent: "f1", wantErr: ErrInvalidMove},
		{name: "into own descendant", ids: []string{"f1"}, newParent: "f2", wantErr: ErrInvalidMove},
		{name: "under a file", ids: []string{"i3"}, newParent: "i1", wantErr: ErrInvalidMove},
		{name: "unknown item", ids: []string{"i1", "zz"}, newParent: "", wantErr: ErrNotFound},
		{name: "unknown parent", ids: []string{"i1"}, newParent: "zz", wantErr: ErrNotFound},
		{name: "valid and invalid together", ids: []string{"i3", "f1"}, newParent: "f2", wantErr: ErrInvalidMove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			x := buildIndex(t)
			before, _ := json.Marshal(x)

			err := x.Move(tt.ids, tt.newParent)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Move() error = %v, want %v", err, tt.wantErr)
				}
				after, _ := json.Marshal(x)
				if string(before) != string(after) {
					t.Error("failed Move() changed the index")
				}
				return
			}
			if err != nil {
				t.Fatalf("Move() error = %v", err)
			}
			for _, id := range tt.ids {
				it, _ := x.Get(id)
				if it.ParentID != tt.newParent {
					t.Errorf("%s parent = %q, want %q", id, it.ParentID, tt.newParent)
				}
			}
			if err := x.Validate(); err != nil {
				t.Errorf("Validate() after Move() error = %v", err)
			}
		})
	}
}

func TestIndex_SoftDeleteAndRestore(t *testing.T) {
	x := buildIndex(t)
	at := t0.Add(time.Hour)

	if err := x.SoftDelete([]string{"f1"}, at); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	for _, id := range []string{"f1", "f2", "i1", "i2"} {
		it, _ := x.Get(id)
		if !it.Deleted || it.DeletedAt == nil || !it.DeletedAt.Equal(at) {
			t.Errorf("%s deleted = %v at %v, want true at %v", id, it.Deleted, it.DeletedAt, at)
		}
	}
	if it, _ := x.Get("i3"); it.Deleted {
		t.Error("unrelated item was deleted")
	}

	// The trash shows the deleted folder once, not its contents.
	if got := ids(x.Trash()); !slices.Equal(got, []string{"f1"}) {
		t.Errorf("Trash() = %v, want [f1]", got)
	}

	// Restoring a nested file brings back its ancestors but not its siblings.
	if err := x.Restore([]string{"i2"}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	for id, want := range map[string]bool{"i2": false, "f2": false, "f1": false, "i1": true} {
		it, _ := x.Get(id)
		if it.Deleted != want {
			t.Errorf("%s deleted = %v, want %v", id, it.Deleted, want)
		}
	}
	if got := ids(x.Trash()); !slices.Equal(got, []string{"i1"}) {
		t.Errorf("Trash() = %v, want [i1]", got)
	}
}

func TestIndex_SoftDeleteUnknownIsAtomic(t *testing.T) {
	x := buildIndex(t)
	if err := x.SoftDelete([]string{"i1", "zz"}, t0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SoftDelete() error = %v, want ErrNotFound", err)
	}
	if it, _ := x.Get("i1"); it.Deleted {
		t.Error("SoftDelete() applied partially")
	}
}

func TestIndex_Purge(t *testing.T) {
	x := buildIndex(t)

	removed, err := x.Purge([]string{"f1"})
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	got := ids(removed)
	slices.Sort(got)
	if !slices.Equal(got, []string{"f1", "f2", "i1", "i2"}) {
		t.Errorf("Purge() removed %v", got)
	}
	if x.Len() != 1 {
		t.Errorf("Len() = %d, want 1", x.Len())
	}
	if err := x.Validate(); err != nil {
		t.Errorf("Validate() after Purge() error = %v", err)
	}
}

func TestIndex_Rename(t *testing.T) {
	x := buildIndex(t)
	if err := x.Rename("i1", "sunset.jpg"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if it, _ := x.Get("i1"); it.Name != "sunset.jpg" {
		t.Errorf("Name = %q", it.Name)
	}
	if err := x.Rename("i1", ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Rename(empty) error = %v, want ErrInvalidName", err)
	}
	if err := x.Rename("zz", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestIndex_GetReturnsCopy(t *testing.T) {
	x := buildIndex(t)
	it, _ := x.Get("i1")
	it.Name = "changed"
	it.Tags = append(it.Tags, "x")

	again, _ := x.Get("i1")
	if again.Name != "beach.jpg" || len(again.Tags) != 0 {
		t.Errorf("mutating a returned item leaked into the index: %+v", again)
	}
}

func TestIndex_JSON(t *testing.T) {
	x := buildIndex(t)
	if err := x.SoftDelete([]string{"i3"}, t0); err != nil {
		t.Fatal(err)
	}
	if err := x.SetTags("i1", []string{"summer"}); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(x)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	again, err := json.Marshal(x)
	if err != nil || string(again) != string(data) {
		t.Error("encoding is not deterministic")
	}

	loaded := NewIndex()
	if err := json.Unmarshal(data, loaded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !slices.Equal(ids(loaded.Items()), ids(x.Items())) {
		t.Errorf("order = %v, want %v", ids(loaded.Items()), ids(x.Items()))
	}
	it, _ := loaded.Get("i3")
	if !it.Deleted || it.DeletedAt == nil {
		t.Errorf("deleted state lost: %+v", it)
	}
	it, _ = loaded.Get("i1")
	if !it.HasTag("SUMMER") {
		t.Errorf("tags lost: %+v", it)
	}
}

func TestIndex_UnmarshalRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: `{{`},
		{name: "wrong version", doc: `{"version":2,"items":[]}`},
		{name: "duplicate id", doc: `{"version":1,"items":[{"id":"a","name":"a","kind":"image"},{"id":"a","name":"b","kind":"image"}]}`},
		{name: "missing id", doc: `{"version":1,"items":[{"name":"a","kind":"image"}]}`},
		{name: "missing parent", doc: `{"version":1,"items":[{"id":"a","name":"a","kind":"image","parent_id":"p"}]}`},
		{name: "file parent", doc: `{"version":1,"items":[{"id":"p","name":"p","kind":"image"},{"id":"a","name":"a","kind":"image","parent_id":"p"}]}`},
		{name: "cycle", doc: `{"version":1,"items":[{"id":"a","name":"a","kind":"folder","parent_id":"b"},{"id":"b","name":"b","kind":"folder","parent_id":"a"}]}`},
		{name: "bad kind", doc: `{"version":1,"items":[{"id":"a","name":"a","kind":"blob"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			x := NewIndex()
			if err := json.Unmarshal([]byte(tt.doc), x); err == nil {
				t.Error("Unmarshal() expected error")
			}
			if x.Len() != 0 {
				t.Error("failed Unmarshal() populated the index")
			}
		})
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		want     Kind
	}{
		{name: "IMG_0001.JPG", want: KindImage},
		{name: "clip.mov", want: KindVideo},
		{name: "song.flac", want: KindAudio},
		{name: "report.pdf", want: KindDocument},
		{name: "raw.dng", want: KindImage},
		{name: "noext", mimeType: "image/png", want: KindImage},
		{name: "data.bin", mimeType: "video/mp4", want: KindVideo},
		{name: "scan.bin", mimeType: "application/pdf", want: KindDocument},
		{name: "notes.txt", mimeType: "text/plain; charset=utf-8", want: KindUnknown},
		{name: "mystery", want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectKind(tt.name, tt.mimeType); got != tt.want {
				t.Errorf("DetectKind(%q, %q) = %s, want %s", tt.name, tt.mimeType, got, tt.want)
			}
		})
	}
}

func TestUniqueName(t *testing.T) {
	tests := []struct {
		name  string
		taken []string
		want  string
	}{
		{name: "photo.jpg", taken: []string{"photo.jpg"}, want: "photo(1).jpg"},
		{name: "photo.jpg", taken: []string{"photo.jpg", "photo(1).jpg"}, want: "photo(2).jpg"},
		{name: "README", taken: []string{"README"}, want: "README_1"},
		{name: ".bashrc", taken: []string{".bashrc"}, want: ".bashrc_1"},
		{name: "archive.tar.gz", taken: []string{"archive.tar.gz"}, want: "archive.tar(1).gz"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			got := uniqueName(tt.name, func(n string) bool { return slices.Contains(tt.taken, n) })
			if got != tt.want {
				t.Errorf("uniqueName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", "a/b", "nul\x00byte", ".", ".."} {
		if err := validateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("validateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
	if err := validateName(strings.Repeat("x", 10) + ".jpg"); err != nil {
		t.Errorf("validateName(valid) = %v", err)
	}
}
