// Package csv implements the "csv" loader writing batches to a delimited
// text file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterLoader("csv", NewLoader)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "csv",
		Kind:        core.KindLoader,
		Description: "Delimited text file destination",
	})
}

// Loader writes all batches into one delimited file. Columns are the sorted
// union of record keys, so output is deterministic regardless of source
// ordering.
type Loader struct {
	name          string
	logger        *zap.Logger
	filePath      string
	delimiter     rune
	includeHeader bool
	appendMode    bool
	createDirs    bool
}

// NewLoader constructs a CSV loader from its configuration block.
func NewLoader(name string, params config.Params, logger *zap.Logger) (core.Loader, error) {
	filePath := params.GetString("file_path", "")
	if filePath == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "csv loader requires a file_path")
	}

	delimiter := params.GetString("delimiter", ",")
	if len([]rune(delimiter)) != 1 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "delimiter must be a single character, got %q", delimiter)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		name:          name,
		logger:        logger.With(zap.String("component", name)),
		filePath:      filePath,
		delimiter:     []rune(delimiter)[0],
		includeHeader: params.GetBool("include_header", true),
		appendMode:    params.GetBool("append", false),
		createDirs:    params.GetBool("create_dirs", false),
	}, nil
}

// ValidateDestination checks the target directory exists, creating it when
// configured to.
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

// Load writes every record of every batch as one row.
func (l *Loader) Load(ctx context.Context, batches []*models.Batch) error {
	columns := columnUnion(batches)

	flags := os.O_CREATE | os.O_WRONLY
	writeHeader := l.includeHeader
	if l.appendMode {
		flags |= os.O_APPEND
		if info, err := os.Stat(l.filePath); err == nil && info.Size() > 0 {
			writeHeader = false
		}
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(l.filePath, flags, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to open destination file")
	}
	defer func() { _ = f.Close() }()

	writer := csv.NewWriter(f)
	writer.Comma = l.delimiter

	if writeHeader {
		if err := writer.Write(columns); err != nil {
			return errors.Wrap(err, errors.ErrorTypeLoad, "failed to write header")
		}
	}

	rows := 0
	for _, batch := range batches {
		for _, record := range batch.Records {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeLoad, "csv load cancelled")
			}

			row := make([]string, len(columns))
			for i, column := range columns {
				if value, ok := record[column]; ok && value != nil {
					row[i] = fmt.Sprint(value)
				}
			}
			if err := writer.Write(row); err != nil {
				return errors.Wrap(err, errors.ErrorTypeLoad, "failed to write row")
			}
			rows++
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to flush csv output")
	}

	l.logger.Info("csv load completed",
		zap.String("path", l.filePath),
		zap.Int("rows", rows))
	return nil
}

// columnUnion collects the sorted union of record keys across all batches.
func columnUnion(batches []*models.Batch) []string {
	seen := make(map[string]struct{})
	for _, batch := range batches {
		for _, record := range batch.Records {
			for key := range record {
				seen[key] = struct{}{}
			}
		}
	}

	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}
