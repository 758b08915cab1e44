// File: internal/ingest/normalize.go
package ingest

import (
	"time"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
)

// Normalizer folds the two upload shapes the extension has shipped over time
// into a uniform batch list. The multi-workspace shape carries a "workspaces"
// array with per-entry fields and request-level fallbacks; the flat legacy
// shape describes a single workspace at the top level.
//
// Normalization never fails: absent or wrongly typed fields degrade to safe
// defaults so one malformed field cannot reject an otherwise usable upload.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer returns a Normalizer using the wall clock for generatedAt
// defaults.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize converts a decoded upload body into one batch per workspace.
//
// The multi-workspace shape is chosen exactly when the body is an object
// whose "workspaces" field is an array, of any length including zero. Every
// other body, object or not, is treated as the flat shape and yields exactly
// one batch.
func (n *Normalizer) Normalize(body any) []schemas.WorkspaceBatch {
	root, _ := body.(map[string]any)

	if raw, present := root["workspaces"]; present {
		if entries, ok := raw.([]any); ok {
			batches := make([]schemas.WorkspaceBatch, 0, len(entries))
			for _, e := range entries {
				// Non-object entries still produce a batch; every field
				// lookup misses and degrades to its default.
				entry, _ := e.(map[string]any)
				batches = append(batches, n.batchFrom(entry, root))
			}
			return batches
		}
	}

	return []schemas.WorkspaceBatch{n.batchFrom(root, nil)}
}

// batchFrom builds one batch from an entry map, consulting the request map
// for the fields that fall back to request level. Either map may be nil.
func (n *Normalizer) batchFrom(entry, request map[string]any) schemas.WorkspaceBatch {
	version := stringField(entry, "extensionVersion")
	if version == "" {
		version = stringField(request, "extensionVersion")
	}

	generated := stringField(entry, "generatedAt")
	if generated == "" {
		generated = stringField(request, "generatedAt")
	}
	if generated == "" {
		generated = n.now().UTC().Format(time.RFC3339)
	}

	findings := findingsField(entry)

	return schemas.WorkspaceBatch{
		WorkspaceID:      stringField(entry, "workspaceId"),
		WorkspaceName:    stringField(entry, "workspaceName"),
		ExtensionVersion: version,
		GeneratedAt:      generated,
		Findings:         findings,
		FindingsCount:    countField(entry, len(findings)),
		FindingsFile:     stringField(entry, "findingsFile"),
	}
}

// stringField returns the string value at key, or "" when the map is nil,
// the key is absent, or the value has another type.
func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// findingsField returns the entry's findings array. Findings are opaque to
// the backend; anything that is not an array degrades to an empty slice,
// never nil, so stored batches always serialize as [].
func findingsField(m map[string]any) []any {
	if m != nil {
		if arr, ok := m["findings"].([]any); ok {
			return arr
		}
	}
	return []any{}
}

// countField returns the caller-supplied findingsCount when it is a
// non-negative number, and fallback otherwise. JSON numbers decode as
// float64; fractional counts truncate.
func countField(m map[string]any, fallback int) int {
	if m != nil {
		if f, ok := m["findingsCount"].(float64); ok {
			if count := int(f); count >= 0 {
				return count
			}
		}
	}
	return fallback
}
