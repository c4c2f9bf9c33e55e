package pv

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// indexVersion is the document version written by Index.MarshalJSON.
const indexVersion = 1

// Index is the in-memory model of the vault tree. Items are kept in
// insertion order, which is also the canonical serialization order.
//
// Every mutating method validates the whole request before touching any
// item: a call either applies completely or returns an error with the index
// unchanged. Index is not safe for concurrent use; Session serializes access.
type Index struct {
	items map[string]*Item
	order []string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{items: make(map[string]*Item)}
}

// Len returns the number of items, deleted ones included.
func (x *Index) Len() int { return len(x.order) }

// Get returns a copy of the item with the given id.
func (x *Index) Get(id string) (*Item, error) {
	it, ok := x.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return it.clone(), nil
}

// Items returns copies of all items in insertion order.
func (x *Index) Items() []*Item {
	out := make([]*Item, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.items[id].clone())
	}
	return out
}

// Children returns copies of the direct children of parentID ("" for root),
// including soft-deleted ones.
func (x *Index) Children(parentID string) []*Item {
	var out []*Item
	for _, id := range x.order {
		if it := x.items[id]; it.ParentID == parentID {
			out = append(out, it.clone())
		}
	}
	return out
}

// Descendants returns the ids of every item below id, depth-first.
func (x *Index) Descendants(id string) []string {
	children := x.childMap()
	var out []string
	var walk func(string)
	walk = func(pid string) {
		for _, cid := range children[pid] {
			out = append(out, cid)
			walk(cid)
		}
	}
	walk(id)
	return out
}

// Trash returns the soft-deleted items whose parent is not itself deleted,
// so a deleted folder appears once rather than with all its contents.
func (x *Index) Trash() []*Item {
	var out []*Item
	for _, id := range x.order {
		it := x.items[id]
		if !it.Deleted {
			continue
		}
		if p, ok := x.items[it.ParentID]; ok && p.Deleted {
			continue
		}
		out = append(out, it.clone())
	}
	return out
}

// Clone returns a deep copy of the index.
func (x *Index) Clone() *Index {
	c := &Index{
		items: make(map[string]*Item, len(x.items)),
		order: slices.Clone(x.order),
	}
	for id, it := range x.items {
		c.items[id] = it.clone()
	}
	return c
}

// CreateFolder adds a folder named name under parentID and returns it.
func (x *Index) CreateFolder(id, name, parentID string, now time.Time) (*Item, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := x.checkParent(parentID); err != nil {
		return nil, err
	}
	if _, exists := x.items[id]; exists {
		return nil, fmt.Errorf("item %s already exists", id)
	}

	it := &Item{
		ID:         id,
		Name:       name,
		Kind:       KindFolder,
		ParentID:   parentID,
		ModifiedAt: now,
	}
	x.insert(it)
	return it.clone(), nil
}

// AddItem inserts a stored file whose blob has already been written.
func (x *Index) AddItem(item *Item) error {
	if item.ID == "" {
		return fmt.Errorf("item id is empty")
	}
	if _, exists := x.items[item.ID]; exists {
		return fmt.Errorf("item %s already exists", item.ID)
	}
	if item.IsFolder() {
		return fmt.Errorf("item %s: use CreateFolder for folders", item.ID)
	}
	if !item.Kind.Valid() {
		return fmt.Errorf("item %s: unknown kind %q", item.ID, item.Kind)
	}
	if err := validateName(item.Name); err != nil {
		return err
	}
	if err := x.checkParent(item.ParentID); err != nil {
		return err
	}

	c := item.clone()
	c.Tags = normalizeTags(c.Tags)
	x.insert(c)
	return nil
}

// UpdateContent records replaced content for an existing file item.
func (x *Index) UpdateContent(id string, size int64, hash string, now time.Time) error {
	it, ok := x.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if it.IsFolder() {
		return fmt.Errorf("item %s is a folder", id)
	}
	it.Size = size
	it.ContentHash = hash
	it.ModifiedAt = now
	return nil
}

// Rename changes the display name of an item. Stored content is untouched.
func (x *Index) Rename(id, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	it, ok := x.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	it.Name = newName
	return nil
}

// Move reparents ids under newParentID ("" for root). The request is
// rejected with ErrInvalidMove if any item would become its own ancestor.
func (x *Index) Move(ids []string, newParentID string) error {
	if err := x.checkParent(newParentID); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := x.items[id]; !ok {
			return fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		if id == newParentID {
			return fmt.Errorf("moving %s into itself: %w", id, ErrInvalidMove)
		}
		if x.isAncestor(id, newParentID) {
			return fmt.Errorf("moving %s into its own descendant %s: %w", id, newParentID, ErrInvalidMove)
		}
	}

	for _, id := range ids {
		x.items[id].ParentID = newParentID
	}
	return nil
}

// SoftDelete flags ids and all their descendants as deleted at the given time.
func (x *Index) SoftDelete(ids []string, at time.Time) error {
	targets, err := x.expand(ids)
	if err != nil {
		return err
	}
	for _, id := range targets {
		it := x.items[id]
		if it.Deleted {
			continue
		}
		ts := at
		it.Deleted = true
		it.DeletedAt = &ts
	}
	return nil
}

// Restore clears the deleted flag on ids and all their descendants. Deleted
// ancestors are restored too so the restored items are reachable again.
func (x *Index) Restore(ids []string) error {
	targets, err := x.expand(ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		for pid := x.items[id].ParentID; pid != ""; pid = x.items[pid].ParentID {
			targets = append(targets, pid)
		}
	}
	for _, id := range targets {
		it := x.items[id]
		it.Deleted = false
		it.DeletedAt = nil
	}
	return nil
}

// SetTags replaces the tags of an item.
func (x *Index) SetTags(id string, tags []string) error {
	it, ok := x.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	it.Tags = normalizeTags(tags)
	return nil
}

// Purge removes ids and all their descendants permanently and returns the
// removed items so the caller can delete their blobs and thumbnails.
func (x *Index) Purge(ids []string) ([]*Item, error) {
	targets, err := x.expand(ids)
	if err != nil {
		return nil, err
	}

	removed := make([]*Item, 0, len(targets))
	drop := make(map[string]bool, len(targets))
	for _, id := range targets {
		removed = append(removed, x.items[id])
		drop[id] = true
		delete(x.items, id)
	}
	x.order = slices.DeleteFunc(x.order, func(id string) bool { return drop[id] })
	return removed, nil
}

// Validate checks the structural invariants of the index: unique ids, known
// kinds, parents that exist and are folders, and no cycles.
func (x *Index) Validate() error {
	if len(x.order) != len(x.items) {
		return fmt.Errorf("index has %d ordered ids but %d items", len(x.order), len(x.items))
	}
	for _, id := range x.order {
		it, ok := x.items[id]
		if !ok {
			return fmt.Errorf("ordered id %s has no item", id)
		}
		if it.ID != id {
			return fmt.Errorf("item keyed %s carries id %s", id, it.ID)
		}
		if !it.Kind.Valid() {
			return fmt.Errorf("item %s: unknown kind %q", id, it.Kind)
		}
		if it.ParentID == "" {
			continue
		}
		p, ok := x.items[it.ParentID]
		if !ok {
			return fmt.Errorf("item %s: parent %s missing", id, it.ParentID)
		}
		if !p.IsFolder() {
			return fmt.Errorf("item %s: parent %s is not a folder", id, it.ParentID)
		}
		if x.isAncestor(id, it.ParentID) {
			return fmt.Errorf("item %s is its own ancestor", id)
		}
	}
	return nil
}

// indexDocument is the serialized form of an Index.
type indexDocument struct {
	Version int     `json:"version"`
	Items   []*Item `json:"items"`
}

// MarshalJSON encodes the index in insertion order.
func (x *Index) MarshalJSON() ([]byte, error) {
	doc := indexDocument{Version: indexVersion, Items: make([]*Item, 0, len(x.order))}
	for _, id := range x.order {
		doc.Items = append(doc.Items, x.items[id])
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes an index document and validates it.
func (x *Index) UnmarshalJSON(data []byte) error {
	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Version != indexVersion {
		return fmt.Errorf("unsupported index version %d", doc.Version)
	}

	loaded := NewIndex()
	for _, it := range doc.Items {
		if it == nil || it.ID == "" {
			return fmt.Errorf("index contains an item without id")
		}
		if _, dup := loaded.items[it.ID]; dup {
			return fmt.Errorf("duplicate item id %s", it.ID)
		}
		loaded.insert(it)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	*x = *loaded
	return nil
}

func (x *Index) insert(it *Item) {
	x.items[it.ID] = it
	x.order = append(x.order, it.ID)
}

// checkParent verifies that parentID is root or an existing folder.
func (x *Index) checkParent(parentID string) error {
	if parentID == "" {
		return nil
	}
	p, ok := x.items[parentID]
	if !ok {
		return fmt.Errorf("parent %s: %w", parentID, ErrNotFound)
	}
	if !p.IsFolder() {
		return fmt.Errorf("parent %s is not a folder: %w", parentID, ErrInvalidMove)
	}
	return nil
}

// isAncestor reports whether ancestor appears on the parent chain of id.
func (x *Index) isAncestor(ancestor, id string) bool {
	seen := make(map[string]bool)
	for cur := id; cur != ""; {
		if seen[cur] {
			return true
		}
		seen[cur] = true
		it, ok := x.items[cur]
		if !ok {
			return false
		}
		if it.ParentID == ancestor {
			return true
		}
		cur = it.ParentID
	}
	return false
}

// expand resolves ids plus all their descendants, without duplicates.
func (x *Index) expand(ids []string) ([]string, error) {
	for _, id := range ids {
		if _, ok := x.items[id]; !ok {
			return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
	}
	seen := make(map[string]bool)
	var out []string
	for _, id := range ids {
		for _, cid := range append([]string{id}, x.Descendants(id)...) {
			if !seen[cid] {
				seen[cid] = true
				out = append(out, cid)
			}
		}
	}
	return out, nil
}

func (x *Index) childMap() map[string][]string {
	m := make(map[string][]string)
	for _, id := range x.order {
		it := x.items[id]
		m[it.ParentID] = append(m[it.ParentID], id)
	}
	return m
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("name %q contains a path separator: %w", name, ErrInvalidName)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("name %q is reserved: %w", name, ErrInvalidName)
	}
	return nil
}
