// File: internal/ingest/assemble.go
package ingest

import (
	"time"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
)

// Assemble stamps ownership and arrival metadata onto normalized batches,
// producing the documents the store persists. The username always comes from
// identity resolution, never from the upload body, and every document from
// one request shares the same receivedAt instant. Output order matches input
// order one to one.
func Assemble(username string, batches []schemas.WorkspaceBatch, receivedAt time.Time) []schemas.BatchDocument {
	docs := make([]schemas.BatchDocument, 0, len(batches))
	for _, batch := range batches {
		docs = append(docs, schemas.BatchDocument{
			WorkspaceBatch: batch,
			Username:       username,
			ReceivedAt:     receivedAt,
		})
	}
	return docs
}
