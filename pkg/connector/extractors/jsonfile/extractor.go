// Package jsonfile implements the "json" extractor for JSON documents on
// disk.
package jsonfile

import (
	"context"
	"os"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/docpath"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterExtractor("json", NewExtractor)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "json",
		Kind:        core.KindExtractor,
		Description: "JSON document source with optional record path",
	})
}

// Extractor reads a JSON file into one batch. record_path points at the
// record list inside the document; without it the document root is used.
type Extractor struct {
	name       string
	logger     *zap.Logger
	filePath   string
	recordPath string
	resolver   *docpath.Resolver
}

// NewExtractor constructs a JSON file extractor from its configuration block.
func NewExtractor(name string, params config.Params, logger *zap.Logger) (core.Extractor, error) {
	filePath := params.GetString("file_path", "")
	if filePath == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "json extractor requires a file_path")
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", name))

	return &Extractor{
		name:       name,
		logger:     logger,
		filePath:   filePath,
		recordPath: params.GetString("record_path", ""),
		resolver:   docpath.NewResolver(logger),
	}, nil
}

// Extract decodes the document and shapes the value at record_path into
// records.
func (e *Extractor) Extract(_ context.Context) (*models.Batch, error) {
	e.logger.Info("extracting from json file", zap.String("path", e.filePath))

	data, err := os.ReadFile(e.filePath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to read json file")
	}

	var document interface{}
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse json document")
	}

	records := docpath.Records(e.resolver.Resolve(document, e.recordPath))

	e.logger.Info("json extraction completed", zap.Int("records", len(records)))
	return models.NewBatch(e.name, records), nil
}

// ValidateSource checks the file exists and holds parseable JSON.
func (e *Extractor) ValidateSource(_ context.Context) error {
	data, err := os.ReadFile(e.filePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeExtraction, "json file not accessible")
	}
	if !json.Valid(data) {
		return errors.Newf(errors.ErrorTypeData, "%s is not valid JSON", e.filePath)
	}
	return nil
}
