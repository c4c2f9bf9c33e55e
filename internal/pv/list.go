package pv

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// SortOrder selects the ordering of listed items. Folders always come first.
type SortOrder string

const (
	SortDateNew SortOrder = "date-new"
	SortDateOld SortOrder = "date-old"
	SortNameAZ  SortOrder = "name-az"
	SortNameZA  SortOrder = "name-za"
)

// ListOptions filters and orders ListChildren results.
type ListOptions struct {
	Sort SortOrder
	// Tag keeps only items carrying this tag (case-insensitive).
	Tag string
	// Query searches the whole subtree below the parent for items whose name
	// or any tag contains it (case-insensitive) instead of listing children.
	Query          string
	IncludeDeleted bool
}

// ListChildren returns the items directly below parentID ("" for root), or
// the subtree matches when opts.Query is set.
func (s *Session) ListChildren(parentID string, opts ListOptions) ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if parentID != "" {
		if _, err := s.index.Get(parentID); err != nil {
			return nil, err
		}
	}

	var candidates []*Item
	if opts.Query != "" {
		for _, id := range s.index.Descendants(parentID) {
			it, _ := s.index.Get(id)
			candidates = append(candidates, it)
		}
	} else {
		candidates = s.index.Children(parentID)
	}

	query := strings.ToLower(opts.Query)
	var out []*Item
	for _, it := range candidates {
		if it.Deleted && !opts.IncludeDeleted {
			continue
		}
		if opts.Tag != "" && !it.HasTag(opts.Tag) {
			continue
		}
		if query != "" && !matchesQuery(it, query) {
			continue
		}
		out = append(out, it)
	}

	sortItems(out, opts.Sort)
	return out, nil
}

// Trash lists the top-level soft-deleted items, most recently deleted first.
func (s *Session) Trash() ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	items := s.index.Trash()
	slices.SortStableFunc(items, func(a, b *Item) int {
		return deletedAt(b).Compare(deletedAt(a))
	})
	return items, nil
}

// Tags returns every tag in use, in first-seen order.
func (s *Session) Tags() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var all []string
	for _, it := range s.index.Items() {
		if !it.Deleted {
			all = append(all, it.Tags...)
		}
	}
	return normalizeTags(all), nil
}

func deletedAt(it *Item) time.Time {
	if it.DeletedAt == nil {
		return time.Time{}
	}
	return *it.DeletedAt
}

func matchesQuery(it *Item, query string) bool {
	if strings.Contains(strings.ToLower(it.Name), query) {
		return true
	}
	for _, t := range it.Tags {
		if strings.Contains(strings.ToLower(t), query) {
			return true
		}
	}
	return false
}

func sortItems(items []*Item, order SortOrder) {
	slices.SortStableFunc(items, func(a, b *Item) int {
		if a.IsFolder() != b.IsFolder() {
			if a.IsFolder() {
				return -1
			}
			return 1
		}
		switch order {
		case SortDateOld:
			return a.ModifiedAt.Compare(b.ModifiedAt)
		case SortNameAZ:
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortNameZA:
			return cmp.Compare(strings.ToLower(b.Name), strings.ToLower(a.Name))
		default:
			return b.ModifiedAt.Compare(a.ModifiedAt)
		}
	})
}
