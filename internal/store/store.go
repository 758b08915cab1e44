package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// workspaceBatchColumns matches the workspace_batches table. Batch rows are
// append-only; nothing ever updates or deletes them.
var workspaceBatchColumns = []string{
	"id", "username", "workspace_id", "workspace_name", "extension_version",
	"generated_at", "findings", "findings_count", "findings_file", "received_at",
}

const sqlInsertIngestEvent = `
	INSERT INTO ingest_events (id, username, outcome, batches, findings, duration_ms, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
`

// Store provides the PostgreSQL persistence layer for uploads and their
// audit trail.
type Store struct {
	pool         DBPool
	log          *zap.Logger
	queryTimeout time.Duration
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger, cfg config.DatabaseConfig) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool:         pool,
		log:          logger.Named("store"),
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

// InsertBatches writes every document of one upload inside a single
// transaction and returns the generated identifiers in input order. A partial
// write never survives: any failure rolls the whole upload back.
func (s *Store) InsertBatches(ctx context.Context, docs []schemas.BatchDocument) ([]string, error) {
	if len(docs) == 0 {
		return nil, errors.New("no batch documents to insert")
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	ids := make([]string, len(docs))
	rows := make([][]any, len(docs))
	for i, doc := range docs {
		findingsJSON, err := json.Marshal(doc.Findings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode findings for workspace %q: %w", doc.WorkspaceName, err)
		}
		ids[i] = uuid.NewString()
		rows[i] = []any{
			ids[i], doc.Username, doc.WorkspaceID, doc.WorkspaceName, doc.ExtensionVersion,
			doc.GeneratedAt, findingsJSON, doc.FindingsCount, doc.FindingsFile, doc.ReceivedAt,
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports pgx.ErrTxClosed, which
		// is not an error worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"workspace_batches"}, workspaceBatchColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return nil, fmt.Errorf("failed to copy workspace batches: %w", err)
	}
	if copied != int64(len(rows)) {
		return nil, fmt.Errorf("unexpected copy count for workspace batches: wrote %d, expected %d", copied, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("Persisted workspace batches",
		zap.String("username", docs[0].Username),
		zap.Int("batches", len(ids)))
	return ids, nil
}

// InsertEvents appends audit events through a single pipelined batch. Events
// are independent diagnostics, so they skip the transactional path the upload
// documents take.
func (s *Store) InsertEvents(ctx context.Context, events []schemas.IngestEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(sqlInsertIngestEvent,
			event.ID,
			event.Username,
			string(event.Outcome),
			event.Batches,
			event.Findings,
			event.DurationMS,
			event.OccurredAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	if br == nil {
		return errors.New("failed to send batch: received nil batch results")
	}
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert ingest event %d of %d: %w", i+1, batch.Len(), err)
		}
	}

	s.log.Debug("Persisted ingest events", zap.Int("events", len(events)))
	return nil
}
