package schemas

import "time"

// WorkspaceBatch is the canonical, shape-independent form of one workspace's
// findings upload. Both accepted request shapes (flat legacy and
// multi-workspace) normalize into a sequence of these.
type WorkspaceBatch struct {
	WorkspaceID      string `json:"workspaceId"`
	WorkspaceName    string `json:"workspaceName"`
	ExtensionVersion string `json:"extensionVersion"`
	// GeneratedAt carries the client's ISO-8601 timestamp verbatim. When the
	// client omits it, the normalizer fills in the server clock (RFC3339).
	GeneratedAt string `json:"generatedAt"`
	// Findings is opaque to the service. It is never nil in canonical form;
	// a missing or wrong-typed findings field becomes an empty sequence.
	Findings      []any  `json:"findings"`
	FindingsCount int    `json:"findingsCount"`
	FindingsFile  string `json:"findingsFile"`
}

// BatchDocument is the persisted record: a WorkspaceBatch plus the resolved
// identity and the server-side receipt timestamp. Documents are immutable
// once inserted; there is no update or delete path.
type BatchDocument struct {
	WorkspaceBatch
	// Username is always derived from the authenticated token, never taken
	// from the request body.
	Username   string    `json:"username"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// IngestResponse is the success reply for POST /v1/findings.
type IngestResponse struct {
	OK              bool   `json:"ok"`
	Username        string `json:"username"`
	BatchesInserted int    `json:"batchesInserted"`
	TotalFindings   int    `json:"totalFindings"`
	// BatchIDs lists the storage-assigned document ids in the same order as
	// the normalized input sequence.
	BatchIDs []string `json:"batchIds"`
}

// ErrorResponse is the uniform failure envelope for every non-2xx reply.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// IngestOutcome classifies how a request to the ingestion endpoint ended.
type IngestOutcome string

const (
	OutcomeAccepted     IngestOutcome = "accepted"
	OutcomeUnauthorized IngestOutcome = "unauthorized"
	OutcomeInvalid      IngestOutcome = "invalid"
	OutcomeFailed       IngestOutcome = "failed"
)

// IngestEvent is one audit-trail entry describing a completed ingestion
// attempt. Events are recorded asynchronously and never affect the request
// outcome.
type IngestEvent struct {
	ID         string        `json:"id"`
	Username   string        `json:"username"`
	Outcome    IngestOutcome `json:"outcome"`
	Batches    int           `json:"batches"`
	Findings   int           `json:"findings"`
	DurationMS int64         `json:"durationMs"`
	OccurredAt time.Time     `json:"occurredAt"`
}
