// Package fieldmap implements the "fieldmap" transformer: renaming and
// projecting record fields.
package fieldmap

import (
	"context"

	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterTransformer("fieldmap", NewTransformer)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "fieldmap",
		Kind:        core.KindTransformer,
		Description: "Rename and project record fields",
	})
}

// Transformer renames fields via the rename mapping and optionally projects
// records down to the keep list. Renames apply before projection, so keep
// names refer to the renamed fields.
type Transformer struct {
	name   string
	logger *zap.Logger
	rename map[string]string
	keep   []string
}

// NewTransformer constructs a fieldmap transformer from its configuration
// block.
func NewTransformer(name string, params config.Params, logger *zap.Logger) (core.Transformer, error) {
	rename := params.GetStringMap("rename")
	keep := params.GetStringSlice("keep")
	if len(rename) == 0 && len(keep) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "fieldmap requires a rename mapping or a keep list")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transformer{
		name:   name,
		logger: logger.With(zap.String("component", name)),
		rename: rename,
		keep:   keep,
	}, nil
}

// Transform rewrites every record of every batch in place of the input set.
func (t *Transformer) Transform(_ context.Context, batches []*models.Batch) ([]*models.Batch, error) {
	out := make([]*models.Batch, 0, len(batches))
	for _, batch := range batches {
		records := make([]models.Record, 0, batch.Len())
		for _, record := range batch.Records {
			records = append(records, t.apply(record))
		}
		out = append(out, models.NewBatch(batch.Source, records))
	}

	t.logger.Debug("fieldmap applied", zap.Int("batches", len(out)))
	return out, nil
}

func (t *Transformer) apply(record models.Record) models.Record {
	renamed := make(models.Record, len(record))
	for field, value := range record {
		if target, ok := t.rename[field]; ok {
			field = target
		}
		renamed[field] = value
	}

	if len(t.keep) == 0 {
		return renamed
	}

	projected := make(models.Record, len(t.keep))
	for _, field := range t.keep {
		if value, ok := renamed[field]; ok {
			projected[field] = value
		}
	}
	return projected
}
