package pv

import (
	"cmp"
	"fmt"
	"slices"
)

// FindDuplicates groups items holding identical content. Candidates are
// first bucketed by size, then split by plaintext content hash, so hashes
// are only compared between files of equal length. Names do not take part:
// the same file imported under two names is one group. Folders, deleted
// items and items without a hash are ignored.
//
// Each group is ordered by ModifiedAt ascending (ties broken by id) and
// groups are ordered by their oldest member.
func FindDuplicates(items []*Item) [][]*Item {
	buckets := make(map[int64][]*Item)
	var keys []int64
	for _, it := range items {
		if it.IsFolder() || it.Deleted || it.ContentHash == "" {
			continue
		}
		k := it.Size
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], it)
	}

	var groups [][]*Item
	for _, k := range keys {
		bucket := buckets[k]
		if len(bucket) < 2 {
			continue
		}
		byHash := make(map[string][]*Item)
		var hashes []string
		for _, it := range bucket {
			if _, ok := byHash[it.ContentHash]; !ok {
				hashes = append(hashes, it.ContentHash)
			}
			byHash[it.ContentHash] = append(byHash[it.ContentHash], it)
		}
		for _, h := range hashes {
			if g := byHash[h]; len(g) >= 2 {
				groups = append(groups, g)
			}
		}
	}

	for _, g := range groups {
		slices.SortFunc(g, compareAge)
	}
	slices.SortStableFunc(groups, func(a, b []*Item) int { return compareAge(a[0], b[0]) })
	return groups
}

func compareAge(a, b *Item) int {
	if c := a.ModifiedAt.Compare(b.ModifiedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// FindDuplicates reports duplicate groups across the whole vault.
func (s *Session) FindDuplicates() ([][]*Item, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return FindDuplicates(snap.Items()), nil
}

// ResolveDuplicates keeps the oldest item of every duplicate group and moves
// the others to the trash in a single index update. Returns the trashed ids.
func (s *Session) ResolveDuplicates() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var extra []string
	for _, g := range FindDuplicates(s.index.Items()) {
		for _, it := range g[1:] {
			extra = append(extra, it.ID)
		}
	}
	if len(extra) == 0 {
		return nil, nil
	}

	now := s.clock.Now()
	if err := s.mutate(func(x *Index) error { return x.SoftDelete(extra, now) }); err != nil {
		return nil, fmt.Errorf("trashing duplicates: %w", err)
	}
	s.logger.Info("duplicates trashed", "count", len(extra))
	return extra, nil
}
