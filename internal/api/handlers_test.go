// File: internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/ingest"
)

// -- Test Helpers --

// stubIngest is a controllable IngestService implementation.
type stubIngest struct {
	resp      *schemas.IngestResponse
	err       error
	calls     int
	lastToken string
	lastBody  []byte
}

func (s *stubIngest) Ingest(_ context.Context, token string, body []byte) (*schemas.IngestResponse, error) {
	s.calls++
	s.lastToken = token
	s.lastBody = body
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newTestRouter(svc IngestService, maxBodyBytes int64) chi.Router {
	r := chi.NewRouter()
	NewHandlers(zap.NewNop(), svc, maxBodyBytes).RegisterRoutes(r)
	return r
}

func postFindings(router chi.Router, authorization string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/findings", bytes.NewReader(body))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) schemas.ErrorResponse {
	t.Helper()
	var resp schemas.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// -- Health Endpoint --

func TestHandleHealth(t *testing.T) {
	svc := &stubIngest{}
	router := newTestRouter(svc, 1024)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp schemas.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)

	// Health never enters the ingestion pipeline.
	assert.Zero(t, svc.calls)
}

// -- Ingest Endpoint --

func TestHandleIngestSuccess(t *testing.T) {
	svc := &stubIngest{
		resp: &schemas.IngestResponse{
			OK:              true,
			Username:        "alice",
			BatchesInserted: 2,
			TotalFindings:   5,
			BatchIDs:        []string{"batch-1", "batch-2"},
		},
	}
	router := newTestRouter(svc, 1024)

	body := []byte(`{"workspaces":[{"workspaceId":"a"},{"workspaceId":"b"}]}`)
	rec := postFindings(router, "Bearer tok-123", body)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp schemas.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, 2, resp.BatchesInserted)
	assert.Equal(t, 5, resp.TotalFindings)
	assert.Equal(t, []string{"batch-1", "batch-2"}, resp.BatchIDs)

	require.Equal(t, 1, svc.calls)
	assert.Equal(t, "tok-123", svc.lastToken)
	assert.Equal(t, body, svc.lastBody)
}

func TestHandleIngestAuthorization(t *testing.T) {
	t.Run("should reject a request without an authorization header", func(t *testing.T) {
		svc := &stubIngest{err: ingest.ErrMissingCredential}
		router := newTestRouter(svc, 1024)

		rec := postFindings(router, "", []byte(`{"findings":[]}`))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.False(t, resp.OK)
		assert.Equal(t, "missing bearer credential", resp.Error)

		// The pipeline still classifies the failure, but the body is never read.
		require.Equal(t, 1, svc.calls)
		assert.Empty(t, svc.lastToken)
		assert.Nil(t, svc.lastBody)
	})

	t.Run("should reject a non-bearer authorization scheme", func(t *testing.T) {
		svc := &stubIngest{err: ingest.ErrMissingCredential}
		router := newTestRouter(svc, 1024)

		rec := postFindings(router, "Basic dXNlcjpwYXNz", []byte(`{}`))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, svc.lastToken)
		assert.Nil(t, svc.lastBody)
	})

	t.Run("should reject a blank bearer credential", func(t *testing.T) {
		svc := &stubIngest{err: ingest.ErrMissingCredential}
		router := newTestRouter(svc, 1024)

		rec := postFindings(router, "Bearer    ", []byte(`{}`))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, svc.lastToken)
	})

	t.Run("should map identity verification failures to 401", func(t *testing.T) {
		svc := &stubIngest{
			err: fmt.Errorf("%w: github identity lookup failed: 401 Bad credentials", ingest.ErrAuthFailed),
		}
		router := newTestRouter(svc, 1024)

		rec := postFindings(router, "Bearer expired-token", []byte(`{"findings":[]}`))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Contains(t, resp.Error, "identity verification failed")
	})
}

func TestHandleIngestFailureMapping(t *testing.T) {
	t.Run("should map invalid payloads to 400", func(t *testing.T) {
		svc := &stubIngest{err: fmt.Errorf("%w: malformed JSON body", ingest.ErrInvalidPayload)}
		router := newTestRouter(svc, 1024)

		rec := postFindings(router, "Bearer tok", []byte(`{not json`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Contains(t, resp.Error, "malformed JSON body")
	})

	t.Run("should map persistence failures to 500", func(t *testing.T) {
		svc := &stubIngest{err: fmt.Errorf("%w: failed to commit transaction", ingest.ErrPersistence)}
		router := newTestRouter(svc, 1024)

		rec := postFindings(router, "Bearer tok", []byte(`{"findings":[]}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Contains(t, resp.Error, "failed to commit transaction")
	})

	t.Run("should treat unclassified failures as internal errors", func(t *testing.T) {
		svc := &stubIngest{err: errors.New("something unexpected")}
		router := newTestRouter(svc, 1024)

		rec := postFindings(router, "Bearer tok", []byte(`{"findings":[]}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Equal(t, "something unexpected", resp.Error)
	})
}

func TestHandleIngestBodyLimit(t *testing.T) {
	svc := &stubIngest{}
	router := newTestRouter(svc, 64)

	oversized := []byte(`{"findings":"` + strings.Repeat("x", 200) + `"}`)
	rec := postFindings(router, "Bearer tok", oversized)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Contains(t, resp.Error, "64 byte limit")

	// The pipeline never sees an oversized upload.
	assert.Zero(t, svc.calls)
}

// -- Helpers --

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		want          string
	}{
		{"no header", "", ""},
		{"bearer token", "Bearer abc123", "abc123"},
		{"surrounding whitespace is trimmed", "Bearer   abc123  ", "abc123"},
		{"basic scheme is ignored", "Basic dXNlcjpwYXNz", ""},
		{"lowercase scheme is ignored", "bearer abc123", ""},
		{"blank credential", "Bearer    ", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/findings", nil)
			if tc.authorization != "" {
				req.Header.Set("Authorization", tc.authorization)
			}
			assert.Equal(t, tc.want, bearerToken(req))
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing credential", ingest.ErrMissingCredential, http.StatusUnauthorized},
		{"auth failed", fmt.Errorf("%w: bad credentials", ingest.ErrAuthFailed), http.StatusUnauthorized},
		{"invalid payload", fmt.Errorf("%w: malformed JSON body", ingest.ErrInvalidPayload), http.StatusBadRequest},
		{"persistence", fmt.Errorf("%w: pool exhausted", ingest.ErrPersistence), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusForError(tc.err))
		})
	}
}
