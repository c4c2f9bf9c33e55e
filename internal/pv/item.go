package pv

import (
	"mime"
	"path"
	"slices"
	"strings"
	"time"
)

// Kind classifies vault content. It determines which thumbnail renderer applies.
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindFolder   Kind = "folder"
	KindUnknown  Kind = "unknown"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindDocument, KindFolder, KindUnknown:
		return true
	}
	return false
}

var kindExtensions = map[Kind][]string{
	KindVideo:    {"mp4", "mkv", "mov", "avi", "webm", "3gp", "heiv", "ts", "m4v"},
	KindImage:    {"jpg", "jpeg", "png", "webp", "bmp", "gif", "heic", "heif", "dng"},
	KindAudio:    {"mp3", "wav", "m4a", "aac", "flac", "ogg"},
	KindDocument: {"pdf"},
}

// DetectKind classifies a file by its extension, falling back to the MIME type
// (as sniffed by the caller, may be empty) when the extension is not recognized.
func DetectKind(name, mimeType string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	for _, k := range []Kind{KindVideo, KindImage, KindAudio, KindDocument} {
		if slices.Contains(kindExtensions[k], ext) {
			return k
		}
	}

	if mimeType == "" && ext != "" {
		mimeType = mime.TypeByExtension("." + ext)
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case strings.HasPrefix(mimeType, "application/pdf"):
		return KindDocument
	}
	return KindUnknown
}

// Item is a single node of the vault tree: either a folder or a stored file.
type Item struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        Kind       `json:"kind"`
	ParentID    string     `json:"parent_id,omitempty"` // empty means root
	ModifiedAt  time.Time  `json:"modified_at"`
	Size        int64      `json:"size"`                   // plaintext bytes, 0 for folders
	ContentHash string     `json:"content_hash,omitempty"` // hex SHA-256 of plaintext
	Tags        []string   `json:"tags,omitempty"`
	Deleted     bool       `json:"deleted,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (it *Item) IsFolder() bool { return it.Kind == KindFolder }

// HasTag reports whether the item carries tag, compared case-insensitively.
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// clone returns a deep copy so index snapshots never share mutable state.
func (it *Item) clone() *Item {
	c := *it
	if it.Tags != nil {
		c.Tags = slices.Clone(it.Tags)
	}
	if it.DeletedAt != nil {
		t := *it.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// normalizeTags trims, drops empties, and deduplicates case-insensitively
// while preserving first-seen order.
func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
