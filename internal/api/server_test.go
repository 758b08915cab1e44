// File: internal/api/server_test.go
package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		MaxBodyBytes:    1024,
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 2 * time.Second,
		MaxConns:        4,
	}
}

func newTestServer(svc IngestService) *Server {
	handlers := NewHandlers(zap.NewNop(), svc, 1024)
	return NewServer(testServerConfig(), zap.NewNop(), handlers)
}

// -- Lifecycle --

func TestServerRunServesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &stubIngest{resp: &schemas.IngestResponse{OK: true, Username: "alice"}}
	srv := newTestServer(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return srv.Addr() != ""
	}, 2*time.Second, 10*time.Millisecond, "server never bound a listener")

	// Hit the live server over a real connection.
	req, err := http.NewRequest(http.MethodGet, "http://"+srv.Addr()+"/health", nil)
	require.NoError(t, err)
	req.Close = true

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	cancel()
	select {
	case runErr := <-errChan:
		assert.NoError(t, runErr)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after cancellation")
	}

	http.DefaultClient.CloseIdleConnections()
}

func TestServerRunFailsOnBadAddress(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testServerConfig()
	cfg.ListenAddr = "this is not a listen address"
	srv := NewServer(cfg, zap.NewNop(), NewHandlers(zap.NewNop(), &stubIngest{}, 1024))

	err := srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

// -- Middleware --

func TestRouterCORS(t *testing.T) {
	svc := &stubIngest{}
	srv := newTestServer(svc)
	router := srv.Router()

	t.Run("should answer preflight requests without entering the pipeline", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/findings", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "POST, GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Zero(t, svc.calls)
	})

	t.Run("should attach CORS headers to normal responses", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRouterRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handlers := NewHandlers(zap.NewNop(), &stubIngest{}, 1024)
	srv := NewServer(testServerConfig(), logger, handlers)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("Request handled.").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, http.MethodGet, fields["method"])
	assert.Equal(t, "/health", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}
