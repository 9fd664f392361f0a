// Package filter implements the "filter" transformer: dropping records that
// fail a single-field predicate.
package filter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterTransformer("filter", NewTransformer)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "filter",
		Kind:        core.KindTransformer,
		Description: "Keep records matching a single-field predicate",
	})
}

const (
	opEquals    = "eq"
	opNotEquals = "ne"
	opExists    = "exists"
	opNotEmpty  = "not_empty"
)

// Transformer keeps the records whose field satisfies the configured
// predicate. Value comparison stringifies both sides, so "42" matches a
// numeric 42 from a JSON source.
type Transformer struct {
	name   string
	logger *zap.Logger
	field  string
	op     string
	value  string
}

// NewTransformer constructs a filter transformer from its configuration
// block.
func NewTransformer(name string, params config.Params, logger *zap.Logger) (core.Transformer, error) {
	field := params.GetString("field", "")
	if field == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "filter requires a field")
	}

	op := params.GetString("op", opExists)
	switch op {
	case opEquals, opNotEquals, opExists, opNotEmpty:
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported filter op %q", op)
	}

	if (op == opEquals || op == opNotEquals) && !params.Has("value") {
		return nil, errors.Newf(errors.ErrorTypeConfig, "filter op %q requires a value", op)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transformer{
		name:   name,
		logger: logger.With(zap.String("component", name)),
		field:  field,
		op:     op,
		value:  fmt.Sprint(params["value"]),
	}, nil
}

// Transform drops non-matching records, preserving batch boundaries.
func (t *Transformer) Transform(_ context.Context, batches []*models.Batch) ([]*models.Batch, error) {
	kept, dropped := 0, 0

	out := make([]*models.Batch, 0, len(batches))
	for _, batch := range batches {
		records := make([]models.Record, 0, batch.Len())
		for _, record := range batch.Records {
			if t.matches(record) {
				records = append(records, record)
				kept++
			} else {
				dropped++
			}
		}
		out = append(out, models.NewBatch(batch.Source, records))
	}

	t.logger.Debug("filter applied",
		zap.Int("kept", kept),
		zap.Int("dropped", dropped))
	return out, nil
}

func (t *Transformer) matches(record models.Record) bool {
	value, present := record[t.field]

	switch t.op {
	case opExists:
		return present
	case opNotEmpty:
		return present && value != nil && fmt.Sprint(value) != ""
	case opEquals:
		return present && fmt.Sprint(value) == t.value
	case opNotEquals:
		return !present || fmt.Sprint(value) != t.value
	default:
		return false
	}
}
