// File: internal/ingest/service.go

// Package ingest implements the findings upload pipeline: credential
// short-circuit, identity resolution, payload normalization, document
// assembly, and the single storage write. The pipeline either persists every
// batch of an upload or none of them.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
)

// IdentityResolver exchanges a bearer token for the username it belongs to.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// BatchWriter persists assembled documents in one atomic write and returns
// the generated identifiers in insertion order.
type BatchWriter interface {
	InsertBatches(ctx context.Context, docs []schemas.BatchDocument) ([]string, error)
}

// AuditSink accepts ingest events for asynchronous recording. Record must
// never block the caller.
type AuditSink interface {
	Record(event schemas.IngestEvent)
}

// Service coordinates one upload end to end.
type Service struct {
	identity IdentityResolver
	store    BatchWriter
	audit    AuditSink
	norm     *Normalizer
	log      *zap.Logger
	now      func() time.Time
}

// NewService wires the upload pipeline. The audit sink may be nil, in which
// case no events are recorded.
func NewService(identity IdentityResolver, store BatchWriter, audit AuditSink, logger *zap.Logger) *Service {
	return &Service{
		identity: identity,
		store:    store,
		audit:    audit,
		norm:     NewNormalizer(),
		log:      logger.Named("ingest"),
		now:      time.Now,
	}
}

// Ingest processes a single upload. The token is checked before the body is
// touched, identity resolution happens before any parsing, and the body only
// reaches storage once it yields at least one batch. Errors wrap the package
// sentinels so callers can classify them with errors.Is.
func (s *Service) Ingest(ctx context.Context, token string, body []byte) (*schemas.IngestResponse, error) {
	started := s.now()

	if strings.TrimSpace(token) == "" {
		s.record(schemas.OutcomeUnauthorized, "", 0, 0, started)
		return nil, ErrMissingCredential
	}

	username, err := s.identity.Resolve(ctx, token)
	if err != nil {
		s.record(schemas.OutcomeUnauthorized, "", 0, 0, started)
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		s.record(schemas.OutcomeInvalid, username, 0, 0, started)
		return nil, fmt.Errorf("%w: malformed JSON body", ErrInvalidPayload)
	}

	batches := s.norm.Normalize(decoded)
	if len(batches) == 0 {
		s.record(schemas.OutcomeInvalid, username, 0, 0, started)
		return nil, fmt.Errorf("%w: upload contains no workspace batches", ErrInvalidPayload)
	}

	docs := Assemble(username, batches, s.now().UTC())

	ids, err := s.store.InsertBatches(ctx, docs)
	if err != nil {
		s.record(schemas.OutcomeFailed, username, 0, 0, started)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	totalFindings := 0
	for _, doc := range docs {
		totalFindings += doc.FindingsCount
	}

	s.record(schemas.OutcomeAccepted, username, len(ids), totalFindings, started)
	s.log.Info("Stored findings upload.",
		zap.String("username", username),
		zap.Int("batches", len(ids)),
		zap.Int("findings", totalFindings))

	return &schemas.IngestResponse{
		OK:              true,
		Username:        username,
		BatchesInserted: len(ids),
		TotalFindings:   totalFindings,
		BatchIDs:        ids,
	}, nil
}

func (s *Service) record(outcome schemas.IngestOutcome, username string, batches, findings int, started time.Time) {
	if s.audit == nil {
		return
	}
	now := s.now()
	s.audit.Record(schemas.IngestEvent{
		ID:         uuid.NewString(),
		Username:   username,
		Outcome:    outcome,
		Batches:    batches,
		Findings:   findings,
		DurationMS: now.Sub(started).Milliseconds(),
		OccurredAt: now.UTC(),
	})
}
