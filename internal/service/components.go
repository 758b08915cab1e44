// File: internal/service/components.go
package service

import (
	"github.com/FLUSEC-25-26/flusec-cloud/internal/api"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/audit"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/identity"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/ingest"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/observability"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/store"
)

// Components holds all the initialized services of the ingestion backend.
// This struct centralizes the lifecycle management of the server's
// dependencies so the serve command can build, run, and tear everything
// down in one place.
type Components struct {
	Config   config.Interface
	Identity *identity.GitHubResolver
	Stores   *store.Provider
	Recorder *audit.Recorder
	Ingest   *ingest.Service
	API      *api.Server
}

// Shutdown gracefully closes all components in dependency order. It is safe
// to call on a partially initialized struct and safe to call more than once.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Stop the audit recorder first so buffered events flush while the
	// store is still reachable.
	if c.Recorder != nil {
		c.Recorder.Stop()
		logger.Debug("Audit recorder stopped.")
	}

	// 2. Close the database connection pool.
	if c.Stores != nil {
		c.Stores.Close()
		logger.Debug("Database connection released.")
	}

	logger.Info("Ingestion components shut down.")
}
