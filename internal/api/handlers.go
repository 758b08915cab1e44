// File: internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/ingest"
)

// IngestService processes one findings upload end to end.
type IngestService interface {
	Ingest(ctx context.Context, token string, body []byte) (*schemas.IngestResponse, error)
}

// Handlers manages the HTTP request handling for the ingestion server.
type Handlers struct {
	log          *zap.Logger
	svc          IngestService
	maxBodyBytes int64
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, svc IngestService, maxBodyBytes int64) *Handlers {
	return &Handlers{
		log:          logger.Named("api"),
		svc:          svc,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes sets up the routing for the ingestion server.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	// Health check endpoint (unversioned, unauthenticated)
	r.Get("/health", h.HandleHealth)

	// API v1 Routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/findings", h.HandleIngest)
	})
}

// HandleHealth confirms the server is responsive. It never touches identity
// or storage, so it stays green while the database is down.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, schemas.HealthResponse{OK: true})
}

// HandleIngest receives a findings upload from the extension. Requests
// without a bearer token are rejected before the body is read at all.
func (h *Handlers) HandleIngest(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	var body []byte
	if token != "" {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				h.respondError(w, http.StatusRequestEntityTooLarge,
					fmt.Errorf("request body exceeds the %d byte limit", maxErr.Limit))
				return
			}
			h.respondError(w, http.StatusBadRequest, fmt.Errorf("failed to read request body: %v", err))
			return
		}
	}

	resp, err := h.svc.Ingest(r.Context(), token, body)
	if err != nil {
		h.respondError(w, statusForError(err), err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// bearerToken extracts the credential from an Authorization: Bearer header.
// A missing header, a different scheme, or a blank credential all yield "".
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// statusForError maps pipeline failures onto HTTP status codes. Anything
// unclassified is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ingest.ErrMissingCredential), errors.Is(err, ingest.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ingest.ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handlers) respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError sends the standardized failure envelope.
func (h *Handlers) respondError(w http.ResponseWriter, statusCode int, err error) {
	h.respondJSON(w, statusCode, schemas.ErrorResponse{OK: false, Error: err.Error()})
}
