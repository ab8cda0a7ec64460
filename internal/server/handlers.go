package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/graysonchalmers/art-metadata-batch/internal/catalog"
	"github.com/graysonchalmers/art-metadata-batch/internal/export"
	"github.com/graysonchalmers/art-metadata-batch/internal/imaging"
)

// handleUpload accepts either a multipart form with one or more image files
// (field "files", "file" also accepted) or a JSON body with an image URL.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		h.handleURLUpload(w, r)
		return
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, "failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		h.writeError(w, "no files in upload", http.StatusBadRequest)
		return
	}

	var added []itemView
	skipped := 0
	for _, fh := range files {
		view, err := h.addUploadedFile(fh)
		if err != nil {
			log.Warn().Err(err).Str("filename", fh.Filename).Msg("skipping uploaded file")
			skipped++
			continue
		}
		added = append(added, view)
	}

	if len(added) == 0 {
		h.writeError(w, "no usable image files in upload", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, map[string]any{
		"added":   len(added),
		"skipped": skipped,
		"items":   added,
	})
}

func (h *Handler) addUploadedFile(fh *multipart.FileHeader) (itemView, error) {
	f, err := fh.Open()
	if err != nil {
		return itemView{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return itemView{}, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return itemView{}, fmt.Errorf("file exceeds %d bytes", h.maxUploadBytes)
	}

	mimeType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return itemView{}, fmt.Errorf("not an image (%s)", mimeType)
	}

	id := h.addItem(fh.Filename, mimeType, data)
	item, _ := h.store.Get(id)
	return viewOf(item), nil
}

// addItem creates the idle item record with a best-effort preview.
func (h *Handler) addItem(name, mimeType string, data []byte) string {
	preview, err := imaging.Thumbnail(data, imaging.PreviewMaxSide)
	if err != nil {
		log.Warn().Err(err).Str("filename", name).Msg("could not generate preview")
		preview = nil
	}
	id := h.store.Add(name, mimeType, data, preview)
	log.Info().Str("itemId", id).Str("filename", name).Str("mimeType", mimeType).Int("bytes", len(data)).Msg("item added")
	return id
}

func (h *Handler) handleURLUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURL string `json:"image_url"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		h.writeError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return
	}

	data, mimeType, name, err := h.fetcher.Fetch(r.Context(), req.ImageURL)
	if err != nil {
		h.writeError(w, "failed to fetch image URL: "+err.Error(), http.StatusBadRequest)
		return
	}

	id := h.addItem(name, mimeType, data)
	item, _ := h.store.Get(id)
	h.writeJSON(w, map[string]any{
		"added": 1,
		"items": []itemView{viewOf(item)},
	})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items := h.store.List()
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, viewOf(item))
	}
	h.writeJSON(w, views)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	item, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		h.writeError(w, "item not found", http.StatusNotFound)
		return
	}
	if len(item.Preview) == 0 {
		h.writeError(w, "item has no preview", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := w.Write(item.Preview); err != nil {
		log.Error().Err(err).Str("itemId", item.ID).Msg("unable to write preview")
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.store.Delete(id) {
		h.writeError(w, "item not found", http.StatusNotFound)
		return
	}
	log.Info().Str("itemId", id).Msg("item deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	log.Info().Msg("session cleared")
	w.WriteHeader(http.StatusNoContent)
}

// handleEdit applies field-level metadata edits. Updates are immediate and
// last-write-wins; values are accepted as-is, including empty strings.
func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Filename    *string `json:"filename"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Tags        *string `json:"tags"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		h.writeError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	fields := []struct {
		field catalog.MetadataField
		value *string
	}{
		{catalog.FieldFilename, req.Filename},
		{catalog.FieldTitle, req.Title},
		{catalog.FieldDescription, req.Description},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if err := h.store.UpdateField(id, f.field, *f.value); err != nil {
			h.writeError(w, err.Error(), http.StatusConflict)
			return
		}
	}
	if req.Tags != nil {
		if err := h.store.SetTags(id, *req.Tags); err != nil {
			h.writeError(w, err.Error(), http.StatusConflict)
			return
		}
	}

	item, ok := h.store.Get(id)
	if !ok {
		h.writeError(w, "item not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, viewOf(item))
}

func (h *Handler) handleGenerateOne(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.runner.GenerateOne(r.Context(), id); err != nil {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	item, ok := h.store.Get(id)
	if !ok {
		h.writeError(w, "item not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, viewOf(item))
}

func (h *Handler) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	result := h.runner.GenerateAll(r.Context())
	h.writeJSON(w, result)
}

// handleBulkTags unions the given tags into every success item's tag list.
func (h *Handler) handleBulkTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags string `json:"tags"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		h.writeError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	touched := h.store.BulkAddTags(req.Tags)
	log.Info().Int("touched", touched).Str("tags", req.Tags).Msg("bulk tags applied")
	h.writeJSON(w, map[string]int{"updated": touched})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, stats, err := h.pipeline.Export(h.store.List())
	if err != nil {
		h.writeError(w, "export failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	log.Info().Int("exported", stats.Exported).Int("skipped", stats.Skipped).Msg("archive exported")

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.ArchiveName))
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("unable to write archive")
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
