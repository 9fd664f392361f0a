// Package csv implements the "csv" extractor for delimited text files.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterExtractor("csv", NewExtractor)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "csv",
		Kind:        core.KindExtractor,
		Description: "Delimited text file source",
	})
}

// Extractor reads a delimited file into one batch, one record per row.
type Extractor struct {
	name      string
	logger    *zap.Logger
	filePath  string
	delimiter rune
	hasHeader bool
	maxRows   int
}

// NewExtractor constructs a CSV extractor from its configuration block.
func NewExtractor(name string, params config.Params, logger *zap.Logger) (core.Extractor, error) {
	filePath := params.GetString("file_path", "")
	if filePath == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "csv extractor requires a file_path")
	}

	delimiter := params.GetString("delimiter", ",")
	if len([]rune(delimiter)) != 1 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "delimiter must be a single character, got %q", delimiter)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		name:      name,
		logger:    logger.With(zap.String("component", name)),
		filePath:  filePath,
		delimiter: []rune(delimiter)[0],
		hasHeader: params.GetBool("has_header", true),
		maxRows:   params.GetInt("max_rows", 0),
	}, nil
}

// Extract reads the whole file. With a header row, records are keyed by
// column name; without one, columns are named by position.
func (e *Extractor) Extract(ctx context.Context) (*models.Batch, error) {
	e.logger.Info("extracting from csv file", zap.String("path", e.filePath))

	f, err := os.Open(e.filePath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to open csv file")
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.Comma = e.delimiter
	reader.FieldsPerRecord = -1

	var header []string
	if e.hasHeader {
		row, err := reader.Read()
		if err == io.EOF {
			return models.NewBatch(e.name, nil), nil
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to read csv header")
		}
		header = row
	}

	var records []models.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "csv extraction cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to read csv row")
		}

		record := make(models.Record, len(row))
		for i, value := range row {
			record[e.columnName(header, i)] = value
		}
		records = append(records, record)

		if e.maxRows > 0 && len(records) >= e.maxRows {
			break
		}
	}

	e.logger.Info("csv extraction completed", zap.Int("records", len(records)))
	return models.NewBatch(e.name, records), nil
}

func (e *Extractor) columnName(header []string, i int) string {
	if i < len(header) && header[i] != "" {
		return header[i]
	}
	return fmt.Sprintf("column_%d", i)
}

// ValidateSource checks the file exists and is a regular file.
func (e *Extractor) ValidateSource(_ context.Context) error {
	info, err := os.Stat(e.filePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeExtraction, "csv file not accessible")
	}
	if info.IsDir() {
		return errors.Newf(errors.ErrorTypeExtraction, "%s is a directory", e.filePath)
	}
	return nil
}
