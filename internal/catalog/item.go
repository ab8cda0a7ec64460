package catalog

import (
	"time"
)

// Status is the lifecycle state of an item.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Metadata is the AI-suggested (and user-editable) descriptive metadata for
// one image.
type Metadata struct {
	Filename    string   `json:"filename"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Clone returns a deep copy so callers can't mutate store-owned state.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Tags = append([]string(nil), m.Tags...)
	return &c
}

// Item is one uploaded image and its processing state.
//
// Invariants, held after every store mutation:
//   - Metadata != nil exactly when Status == StatusSuccess
//   - Error != "" exactly when Status == StatusError
type Item struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	MIMEType     string    `json:"mime_type"`
	Data         []byte    `json:"-"`
	Preview      []byte    `json:"-"`
	Status       Status    `json:"status"`
	Metadata     *Metadata `json:"metadata,omitempty"`
	Error        string    `json:"error,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

func (i *Item) clone() *Item {
	c := *i
	c.Metadata = i.Metadata.Clone()
	return &c
}
