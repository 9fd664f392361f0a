// Package jsonfile implements the "json" loader writing batches to a JSON
// document, either as one array or as line-delimited records.
package jsonfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterLoader("json", NewLoader)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "json",
		Kind:        core.KindLoader,
		Description: "JSON document destination (array or line-delimited)",
	})
}

const (
	formatArray = "array"
	formatLines = "lines"
)

// Loader writes all records into one JSON file.
type Loader struct {
	name       string
	logger     *zap.Logger
	filePath   string
	format     string
	indent     int
	createDirs bool
}

// NewLoader constructs a JSON loader from its configuration block.
func NewLoader(name string, params config.Params, logger *zap.Logger) (core.Loader, error) {
	filePath := params.GetString("file_path", "")
	if filePath == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "json loader requires a file_path")
	}

	format := params.GetString("format", formatArray)
	if format != formatArray && format != formatLines {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported json format %q", format)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		name:       name,
		logger:     logger.With(zap.String("component", name)),
		filePath:   filePath,
		format:     format,
		indent:     params.GetInt("indent", 2),
		createDirs: params.GetBool("create_dirs", true),
	}, nil
}

// ValidateDestination ensures the target directory exists.
func (l *Loader) ValidateDestination(_ context.Context) error {
	dir := filepath.Dir(l.filePath)
	if l.createDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeLoad, "failed to create destination directory")
		}
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "destination directory not accessible")
	}
	if !info.IsDir() {
		return errors.Newf(errors.ErrorTypeLoad, "%s is not a directory", dir)
	}
	return nil
}

// Load flattens all batches into one record list and writes it out.
func (l *Loader) Load(_ context.Context, batches []*models.Batch) error {
	records := make([]models.Record, 0, models.TotalRows(batches))
	for _, batch := range batches {
		records = append(records, batch.Records...)
	}

	var (
		data []byte
		err  error
	)
	switch l.format {
	case formatLines:
		data, err = encodeLines(records)
	default:
		data, err = encodeArray(records, l.indent)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode records")
	}

	if err := os.WriteFile(l.filePath, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to write destination file")
	}

	l.logger.Info("json load completed",
		zap.String("path", l.filePath),
		zap.Int("rows", len(records)))
	return nil
}

func encodeArray(records []models.Record, indent int) ([]byte, error) {
	if indent > 0 {
		return json.MarshalIndent(records, "", spaces(indent))
	}
	return json.Marshal(records)
}

func encodeLines(records []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func spaces(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	return string(out)
}
