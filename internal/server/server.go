// Package server exposes the batch-annotation session over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/graysonchalmers/art-metadata-batch/internal/batch"
	"github.com/graysonchalmers/art-metadata-batch/internal/catalog"
	"github.com/graysonchalmers/art-metadata-batch/internal/export"
)

// Handler owns the session state and the processing components.
type Handler struct {
	store          *catalog.Store
	runner         *batch.Runner
	pipeline       *export.Pipeline
	fetcher        *Fetcher
	maxUploadBytes int64
}

func New(store *catalog.Store, runner *batch.Runner, pipeline *export.Pipeline, fetcher *Fetcher, maxUploadBytes int64) *Handler {
	return &Handler{
		store:          store,
		runner:         runner,
		pipeline:       pipeline,
		fetcher:        fetcher,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes builds the API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/items", h.handleUpload)
	mux.HandleFunc("GET /api/items", h.handleListItems)
	mux.HandleFunc("DELETE /api/items", h.handleClear)
	mux.HandleFunc("GET /api/items/{id}/preview", h.handlePreview)
	mux.HandleFunc("DELETE /api/items/{id}", h.handleDelete)
	mux.HandleFunc("PATCH /api/items/{id}", h.handleEdit)
	mux.HandleFunc("POST /api/items/{id}/generate", h.handleGenerateOne)
	mux.HandleFunc("POST /api/generate", h.handleGenerateAll)
	mux.HandleFunc("POST /api/tags", h.handleBulkTags)
	mux.HandleFunc("GET /api/export", h.handleExport)
	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("unable to write healthcheck")
		}
	})
	return mux
}

// itemView is the wire representation of an item; raw image bytes stay
// server-side with the preview fetched separately.
type itemView struct {
	ID           string            `json:"id"`
	OriginalName string            `json:"original_name"`
	MIMEType     string            `json:"mime_type"`
	Status       catalog.Status    `json:"status"`
	Metadata     *catalog.Metadata `json:"metadata,omitempty"`
	Error        string            `json:"error,omitempty"`
	HasPreview   bool              `json:"has_preview"`
	UploadedAt   time.Time         `json:"uploaded_at"`
}

func viewOf(item *catalog.Item) itemView {
	return itemView{
		ID:           item.ID,
		OriginalName: item.OriginalName,
		MIMEType:     item.MIMEType,
		Status:       item.Status,
		Metadata:     item.Metadata,
		Error:        item.Error,
		HasPreview:   len(item.Preview) > 0,
		UploadedAt:   item.UploadedAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("unable to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	log.Error().Int("status", code).Msg(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
