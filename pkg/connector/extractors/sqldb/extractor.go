// Package sqldb implements the "postgres" extractor: query results from a
// PostgreSQL database become one batch of records.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver
	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterExtractor("postgres", NewExtractor)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "postgres",
		Kind:        core.KindExtractor,
		Description: "PostgreSQL query source",
	})
}

// Extractor runs one query and returns the result set as a batch.
type Extractor struct {
	name   string
	logger *zap.Logger
	db     *sql.DB
	query  string
}

// NewExtractor constructs a PostgreSQL extractor. Either query or table_name
// must be configured; table_name expands to a full-table select.
func NewExtractor(name string, params config.Params, logger *zap.Logger) (core.Extractor, error) {
	dsn := params.GetString("connection_string", "")
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgres extractor requires a connection_string")
	}

	query := params.GetString("query", "")
	if query == "" {
		table := params.GetString("table_name", "")
		if table == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "postgres extractor requires a query or table_name")
		}
		if schema := params.GetString("schema", ""); schema != "" {
			table = schema + "." + table
		}
		query = fmt.Sprintf("SELECT * FROM %s", table)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database connection")
	}
	db.SetMaxOpenConns(params.GetInt("max_connections", 4))
	db.SetConnMaxIdleTime(5 * time.Minute)

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		name:   name,
		logger: logger.With(zap.String("component", name)),
		db:     db,
		query:  query,
	}, nil
}

// Extract runs the query and scans every row into a record keyed by column
// name.
func (e *Extractor) Extract(ctx context.Context) (*models.Batch, error) {
	e.logger.Info("extracting from postgres", zap.String("query", e.query))

	rows, err := e.db.QueryContext(ctx, e.query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "query failed")
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to read result columns")
	}

	var records []models.Record
	values := make([]interface{}, len(columns))
	scanTargets := make([]interface{}, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to scan row")
		}

		record := make(models.Record, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "row iteration failed")
	}

	e.logger.Info("postgres extraction completed", zap.Int("records", len(records)))
	return models.NewBatch(e.name, records), nil
}

// normalizeValue makes scanned values JSON-friendly.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ValidateSource pings the database.
func (e *Extractor) ValidateSource(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "postgres ping failed")
	}
	return nil
}

// Close releases the connection pool.
func (e *Extractor) Close() error {
	return e.db.Close()
}
