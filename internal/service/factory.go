// File: internal/service/factory.go
// Package service assembles the ingestion backend from its parts.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/internal/api"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/audit"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/identity"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/ingest"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/store"
)

// Build handles the full dependency injection and initialization of the
// ingestion components. The database connection itself is deferred until the
// first upload, but a missing database URL is still fatal here so a
// misconfigured deployment fails at startup rather than on the first request.
func Build(cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{Config: cfg}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Store provider. Dialing is lazy, the URL requirement is not.
	if cfg.Database().URL == "" {
		initializationErr = fmt.Errorf("database URL is not configured (hint: check FLUSEC_DATABASE_URL)")
		return nil, initializationErr
	}
	components.Stores = store.NewProvider(cfg.Database(), logger)
	logger.Debug("Store provider initialized, connection deferred until first use.")

	// 2. Identity resolver
	resolver, err := identity.NewGitHubResolver(cfg.GitHub(), logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize identity resolver: %w", err)
		return nil, initializationErr
	}
	components.Identity = resolver
	logger.Debug("GitHub identity resolver initialized.")

	// 3. Audit recorder
	var sink ingest.AuditSink
	if cfg.Audit().Enabled {
		components.Recorder = audit.NewRecorder(components.Stores, logger, cfg.Audit())
		// The recorder runs on a background context rather than the request
		// serving context, so events emitted while the HTTP server drains
		// still reach storage. Components.Shutdown owns stopping it.
		go components.Recorder.Start(context.Background())
		sink = components.Recorder
		logger.Debug("Audit recorder started.")
	} else {
		logger.Info("Audit trail disabled by configuration.")
	}

	// 4. Ingestion pipeline
	components.Ingest = ingest.NewService(resolver, components.Stores, sink, logger)
	logger.Debug("Ingestion service initialized.")

	// 5. HTTP surface
	handlers := api.NewHandlers(logger, components.Ingest, cfg.Server().MaxBodyBytes)
	components.API = api.NewServer(cfg.Server(), logger, handlers)
	logger.Debug("HTTP server initialized.")

	logger.Info("All ingestion components initialized successfully.")

	// The deferred cleanup does not trigger as initializationErr is nil.
	return components, nil
}
