// Package store persists legalization reports so finished runs can be
// re-rendered and re-checked without re-running the engine. Two
// backends share one interface: a file store for CLI usage and a
// mongo store for the serve mode.
package store

import (
	"context"

	"github.com/selimozt/fabpack/pkg/report"
)

// Store is the persistence interface shared by all backends.
type Store interface {
	// Save stores a report. Saving a run ID twice overwrites the
	// earlier report.
	Save(ctx context.Context, r *report.Report) error

	// Get retrieves a report by run ID. A missing run ID is a
	// RESULT_NOT_FOUND error.
	Get(ctx context.Context, runID string) (*report.Report, error)

	// List returns all stored run IDs sorted by creation time, newest
	// first.
	List(ctx context.Context) ([]Summary, error)

	// Delete removes a report. Deleting a missing run ID is not an
	// error.
	Delete(ctx context.Context, runID string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Summary is one row of a store listing.
type Summary struct {
	RunID     string `json:"run_id" bson:"run_id"`
	Strategy  string `json:"strategy" bson:"strategy"`
	Clusters  int    `json:"clusters" bson:"clusters"`
	CreatedAt string `json:"created_at" bson:"created_at"`
}
