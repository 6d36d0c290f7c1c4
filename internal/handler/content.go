package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/service"
)

// ContentHandler serves content buckets under /api/content.
type ContentHandler struct {
	content *service.ContentService
	logger  *slog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(content *service.ContentService, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ContentHandler{content: content, logger: logger}
}

// List returns every known bucket with its default flag.
// GET /api/content
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.content.ListBuckets(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to list content")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse[model.BucketSummary]{
		Resource: summaries,
		Count:    len(summaries),
	})
}

// Get returns one bucket, or its default when nothing has been written.
// GET /api/content/{type}
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.content.GetBucket(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to fetch content")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Put replaces one bucket's whole document. The body must carry a "data"
// field; an explicit null is stored as null.
// PUT|POST /api/content/{type}
func (h *ContentHandler) Put(w http.ResponseWriter, r *http.Request) {
	key, err := service.ParseBucketKey(chi.URLParam(r, "type"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to update content")
		return
	}

	var body map[string]json.RawMessage
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	data, ok := body["data"]
	if !ok {
		writeError(w, http.StatusBadRequest, "data is required")
		return
	}
	if data == nil {
		data = json.RawMessage("null") // present but null
	}

	if _, err := h.content.PutBucket(r.Context(), key, data); err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to update content")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// MissingType answers a content request with an empty type segment.
// GET|PUT|POST /api/content/
func (h *ContentHandler) MissingType(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusBadRequest, "Content type is required")
}
