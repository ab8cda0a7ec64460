package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds the session's item collection. It is the single source of
// truth: every component mutates items through it by ID, and all reads
// return copies.
type Store struct {
	mu    sync.RWMutex
	items map[string]*Item
	order []string
}

func NewStore() *Store {
	return &Store{items: make(map[string]*Item)}
}

// Add creates an idle item for an uploaded file and returns its ID.
func (s *Store) Add(originalName, mimeType string, data, preview []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.items[id] = &Item{
		ID:           id,
		OriginalName: originalName,
		MIMEType:     mimeType,
		Data:         data,
		Preview:      preview,
		Status:       StatusIdle,
		UploadedAt:   time.Now(),
	}
	s.order = append(s.order, id)
	return id
}

// Get returns a copy of the item, or false if it doesn't exist.
func (s *Store) Get(id string) (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return item.clone(), true
}

// List returns copies of all items in upload order.
func (s *Store) List() []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]*Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id].clone())
	}
	return items
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Delete removes exactly one item. Other items are untouched.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every item in the session.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*Item)
	s.order = nil
}

// MarkLoading transitions an item into loading. Allowed from idle, error and
// success (regenerate); a regenerate discards previous metadata, including
// user edits. Returns an error if the item is missing or already loading.
func (s *Store) MarkLoading(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	if item.Status == StatusLoading {
		return fmt.Errorf("item %s is already being analyzed", id)
	}
	item.Status = StatusLoading
	item.Metadata = nil
	item.Error = ""
	return nil
}

// MarkSuccess records analysis results and moves the item to success.
func (s *Store) MarkSuccess(id string, md Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	item.Status = StatusSuccess
	item.Metadata = md.Clone()
	item.Error = ""
	return nil
}

// MarkError records an analysis failure message and moves the item to error.
func (s *Store) MarkError(id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	item.Status = StatusError
	item.Metadata = nil
	item.Error = msg
	return nil
}

// MetadataField names an editable metadata field.
type MetadataField string

const (
	FieldFilename    MetadataField = "filename"
	FieldTitle       MetadataField = "title"
	FieldDescription MetadataField = "description"
)

// UpdateField replaces one metadata field wholesale. Last write wins and
// arbitrary text is accepted, including an empty string. The item must have
// metadata, i.e. be in success status.
func (s *Store) UpdateField(id string, field MetadataField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	if item.Metadata == nil {
		return fmt.Errorf("item %s has no metadata to edit", id)
	}
	switch field {
	case FieldFilename:
		item.Metadata.Filename = value
	case FieldTitle:
		item.Metadata.Title = value
	case FieldDescription:
		item.Metadata.Description = value
	default:
		return fmt.Errorf("unknown metadata field %q", field)
	}
	return nil
}

// SetTags replaces an item's whole tag list, parsed from a comma-separated
// string. An empty result list is accepted.
func (s *Store) SetTags(id, csv string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	if item.Metadata == nil {
		return fmt.Errorf("item %s has no metadata to edit", id)
	}
	item.Metadata.Tags = ParseTags(csv)
	return nil
}

// BulkAddTags unions the tags parsed from csv into every success item's tag
// list. Items in other states are unaffected. Returns the number of items
// touched.
func (s *Store) BulkAddTags(csv string) int {
	incoming := ParseTags(csv)
	if len(incoming) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	touched := 0
	for _, id := range s.order {
		item := s.items[id]
		if item.Status != StatusSuccess {
			continue
		}
		item.Metadata.Tags = MergeTags(item.Metadata.Tags, incoming)
		touched++
	}
	return touched
}
