// Package core defines the capability interfaces pipeline components
// implement. A component is an Extractor, Transformer, or Loader constructed
// from a configuration block; the orchestrator only ever sees these
// interfaces.
package core

import (
	"context"

	"github.com/datafreight/freight/pkg/models"
)

// Kind identifies a component family.
type Kind string

const (
	// KindExtractor marks components that read data from a source
	KindExtractor Kind = "extractor"
	// KindTransformer marks components that reshape batches in flight
	KindTransformer Kind = "transformer"
	// KindLoader marks components that write batches to a destination
	KindLoader Kind = "loader"
)

// Extractor reads a source into a single batch of records.
type Extractor interface {
	// Extract reads the complete record set from the source. Paginated
	// sources assemble all pages into one batch before returning.
	Extract(ctx context.Context) (*models.Batch, error)

	// ValidateSource checks that the source is reachable and well formed
	// without transferring data.
	ValidateSource(ctx context.Context) error
}

// Transformer reshapes a batch set in flight. It may merge, split, filter,
// or rewrite batches; returning an empty set stops the transform chain.
type Transformer interface {
	Transform(ctx context.Context, batches []*models.Batch) ([]*models.Batch, error)
}

// Loader writes the transformed batch set to a destination.
type Loader interface {
	// ValidateDestination checks the destination is writable before any
	// load is attempted. A validation failure skips this loader only.
	ValidateDestination(ctx context.Context) error

	// Load writes every batch to the destination.
	Load(ctx context.Context, batches []*models.Batch) error
}
