// Package sqldb implements the "postgres" loader: batched parameterized
// inserts into a PostgreSQL table.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
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
	_ = registry.RegisterLoader("postgres", NewLoader)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "postgres",
		Kind:        core.KindLoader,
		Description: "PostgreSQL table destination with batched inserts",
	})
}

// Loader inserts all records into one table inside a single transaction.
// Columns come from configuration or, when absent, from the sorted union of
// record keys.
type Loader struct {
	name    string
	logger  *zap.Logger
	db      *sql.DB
	table   string
	columns []string
}

// NewLoader constructs a PostgreSQL loader from its configuration block.
func NewLoader(name string, params config.Params, logger *zap.Logger) (core.Loader, error) {
	dsn := params.GetString("connection_string", "")
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgres loader requires a connection_string")
	}

	table := params.GetString("table_name", "")
	if table == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgres loader requires a table_name")
	}
	if schema := params.GetString("schema", ""); schema != "" {
		table = schema + "." + table
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

	return &Loader{
		name:    name,
		logger:  logger.With(zap.String("component", name)),
		db:      db,
		table:   table,
		columns: params.GetStringSlice("columns"),
	}, nil
}

// ValidateDestination pings the database.
func (l *Loader) ValidateDestination(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "postgres ping failed")
	}
	return nil
}

// Load inserts every record in one transaction so a partial failure leaves
// the table untouched.
func (l *Loader) Load(ctx context.Context, batches []*models.Batch) error {
	columns := l.columns
	if len(columns) == 0 {
		columns = columnUnion(batches)
	}
	if len(columns) == 0 {
		return nil
	}

	query := insertStatement(l.table, columns)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to prepare insert")
	}
	defer func() { _ = stmt.Close() }()

	rows := 0
	for _, batch := range batches {
		for _, record := range batch.Records {
			args := make([]interface{}, len(columns))
			for i, column := range columns {
				args[i] = record[column]
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				_ = tx.Rollback()
				return errors.Wrap(err, errors.ErrorTypeLoad, "insert failed")
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to commit transaction")
	}

	l.logger.Info("postgres load completed",
		zap.String("table", l.table),
		zap.Int("rows", rows))
	return nil
}

// Close releases the connection pool.
func (l *Loader) Close() error {
	return l.db.Close()
}

// insertStatement builds the parameterized insert for the given columns.
func insertStatement(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "))
}

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
