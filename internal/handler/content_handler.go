package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/auth"
	"github.com/prn-tf/graphrag-portal/internal/content"
	"github.com/prn-tf/graphrag-portal/internal/domain"
)

// defaultMaxUploadBytes caps document upload size when the server
// config does not set a limit.
const defaultMaxUploadBytes = 100 << 20 // 100 MiB

// ContentHandler exposes the content subsystem behind the workspace
// boundary. Every operation runs against the workspace attached to the
// request identity; the caller can never name another workspace.
type ContentHandler struct {
	contentService content.Service
	maxUploadBytes int64
	logger         zerolog.Logger
}

// NewContentHandler creates a new ContentHandler. maxUploadBytes of
// zero or less falls back to the default limit.
func NewContentHandler(contentService content.Service, maxUploadBytes int64, logger zerolog.Logger) *ContentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ContentHandler{
		contentService: contentService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("handler", "content").Logger(),
	}
}

// Upload handles POST /documents/upload (multipart form, field "file").
func (h *ContentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "document too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file field"})
		return
	}
	defer file.Close()

	doc, err := h.contentService.IngestDocument(r.Context(), identity.Handle, header.Filename, file)
	if err != nil {
		h.logger.Error().Err(err).
			Str("workspace", identity.Workspace).
			Str("document", header.Filename).
			Msg("document ingestion failed")
		writeError(w, err)
		return
	}

	h.logger.Info().
		Str("workspace", identity.Workspace).
		Str("document", doc.Name).
		Int64("size", doc.Size).
		Msg("document ingested")

	writeJSON(w, http.StatusCreated, doc)
}

// queryRequest is the body of POST /query.
type queryRequest struct {
	Query string `json:"query"`
}

// Query handles POST /query.
func (h *ContentHandler) Query(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query"})
		return
	}

	result, err := h.contentService.Query(r.Context(), identity.Handle, req.Query)
	if err != nil {
		h.logger.Error().Err(err).Str("workspace", identity.Workspace).Msg("query failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Graph handles GET /graphs.
func (h *ContentHandler) Graph(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	graph, err := h.contentService.Graph(r.Context(), identity.Handle)
	if err != nil {
		h.logger.Error().Err(err).Str("workspace", identity.Workspace).Msg("graph read failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, graph)
}
