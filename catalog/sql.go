package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/entityfilter/internal/duckdbtype"
	"github.com/hugr-lab/entityfilter/predicate"
	"github.com/hugr-lab/entityfilter/schema"
)

// SQLCollectionConfig configures a collection backed by a DuckDB table or view.
type SQLCollectionConfig struct {
	// Name is the collection name.
	// REQUIRED: MUST be non-empty.
	Name string

	// Comment is optional collection documentation.
	Comment string

	// Table is the table or view name in the database.
	// OPTIONAL: Defaults to Name.
	Table string

	// Schema is the database schema holding Table.
	// OPTIONAL: Defaults to "main".
	Schema string

	// Encoder customizes how predicates are rendered as SQL.
	// OPTIONAL: nil uses column names as they are.
	Encoder *predicate.EncoderOptions

	// Allocator for scanned records.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for skipped columns and generated queries.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// SQLCollection reads entities from a DuckDB table. Predicates are pushed
// down into the WHERE clause of the scan query.
type SQLCollection struct {
	db         *sql.DB
	name       string
	comment    string
	table      string
	columns    []sqlColumn
	arrow      *arrow.Schema
	entityType *schema.Type
	encoder    *predicate.DuckDBEncoder
	alloc      memory.Allocator
	logger     *slog.Logger
}

type sqlColumn struct {
	name string
	typ  duckdbtype.LogicalType
}

// NewSQLCollection describes the configured table and builds a collection
// over it. Columns whose type cannot be carried in Arrow are skipped with
// a warning.
func NewSQLCollection(ctx context.Context, db *sql.DB, cfg SQLCollectionConfig) (*SQLCollection, error) {
	if cfg.Name == "" {
		return nil, errors.New("collection name is required")
	}
	if cfg.Table == "" {
		cfg.Table = cfg.Name
	}
	if cfg.Schema == "" {
		cfg.Schema = "main"
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.DefaultAllocator
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &SQLCollection{
		db:      db,
		name:    cfg.Name,
		comment: cfg.Comment,
		table:   quoteIdent(cfg.Schema) + "." + quoteIdent(cfg.Table),
		encoder: predicate.NewDuckDBEncoder(cfg.Encoder),
		alloc:   cfg.Allocator,
		logger:  cfg.Logger,
	}
	if err := c.describe(ctx, cfg.Schema, cfg.Table); err != nil {
		return nil, fmt.Errorf("collection %s: %w", cfg.Name, err)
	}
	return c, nil
}

func (c *SQLCollection) describe(ctx context.Context, schemaName, table string) error {
	rows, err := c.db.QueryContext(ctx, `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, schemaName, table)
	if err != nil {
		return fmt.Errorf("describe %s: %w", c.table, err)
	}
	defer rows.Close()

	var fields []arrow.Field
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return fmt.Errorf("describe %s: %w", c.table, err)
		}
		lt, err := duckdbtype.Parse(dataType)
		if err == nil {
			var dt arrow.DataType
			if dt, err = lt.Arrow(); err == nil {
				c.columns = append(c.columns, sqlColumn{name: name, typ: lt})
				fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: true})
				continue
			}
		}
		c.logger.Warn("Skipping column with unsupported type",
			"collection", c.name,
			"column", name,
			"type", dataType,
			"error", err,
		)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("describe %s: %w", c.table, err)
	}
	if len(fields) == 0 {
		return fmt.Errorf("table %s has no readable columns", c.table)
	}

	c.arrow = arrow.NewSchema(fields, nil)
	c.entityType, err = schema.FromArrow(c.name, c.arrow)
	return err
}

func (c *SQLCollection) Name() string    { return c.name }
func (c *SQLCollection) Comment() string { return c.comment }

func (c *SQLCollection) ArrowSchema(columns []string) *arrow.Schema {
	return ProjectSchema(c.arrow, columns)
}

func (c *SQLCollection) EntityType() *schema.Type { return c.entityType }

// Query returns the SQL statement Scan runs for opts.
func (c *SQLCollection) Query(opts *ScanOptions) (string, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	idx := []int(nil)
	if len(opts.Columns) > 0 {
		idx = columnIndices(c.arrow, opts.Columns)
	}
	if len(idx) == 0 {
		idx = make([]int, len(c.columns))
		for i := range c.columns {
			idx[i] = i
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, j := range idx {
		if i > 0 {
			sb.WriteString(", ")
		}
		col := c.columns[j]
		name := quoteIdent(col.name)
		if cast := col.typ.ScanCast(); cast != "" {
			fmt.Fprintf(&sb, "CAST(%s AS %s) AS %s", name, cast, name)
			continue
		}
		sb.WriteString(name)
	}

	sb.WriteString(" FROM (SELECT * FROM ")
	sb.WriteString(c.table)
	if opts.Predicate != nil {
		where, err := c.encoder.Encode(opts.Predicate)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	}
	sb.WriteString(")")
	return sb.String(), nil
}

// Scan runs the pushed-down query and converts result rows to records.
func (c *SQLCollection) Scan(ctx context.Context, opts *ScanOptions) (array.RecordReader, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}
	query, err := c.Query(opts)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", c.name, err)
	}
	c.logger.Debug("SQL collection scan",
		"collection", c.name,
		"predicate", opts.Predicate.String(),
		"query", query,
	)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", c.name, err)
	}

	s := c.ArrowSchema(opts.Columns)
	r := &sqlReader{
		rows:      rows,
		schema:    s,
		builder:   array.NewRecordBuilder(c.alloc, s),
		batchSize: opts.batchSize(),
		dest:      make([]any, s.NumFields()),
	}
	r.refs.Store(1)
	return r, nil
}

// sqlReader converts database rows to record batches.
type sqlReader struct {
	rows      *sql.Rows
	schema    *arrow.Schema
	builder   *array.RecordBuilder
	batchSize int
	dest      []any

	current arrow.RecordBatch
	err     error
	done    bool
	refs    atomic.Int64
}

func (r *sqlReader) Schema() *arrow.Schema { return r.schema }

func (r *sqlReader) Next() bool {
	if r.current != nil {
		r.current.Release()
		r.current = nil
	}
	if r.done {
		return false
	}

	ptrs := make([]any, len(r.dest))
	for i := range r.dest {
		ptrs[i] = &r.dest[i]
	}

	n := 0
	for n < r.batchSize && r.rows.Next() {
		if err := r.rows.Scan(ptrs...); err != nil {
			return r.fail(err)
		}
		for i, v := range r.dest {
			if err := appendValue(r.builder.Field(i), v); err != nil {
				return r.fail(fmt.Errorf("column %s: %w", r.schema.Field(i).Name, err))
			}
		}
		n++
	}
	if n < r.batchSize {
		r.done = true
		if err := r.rows.Err(); err != nil {
			return r.fail(err)
		}
		r.rows.Close()
	}
	if n == 0 {
		return false
	}
	r.current = r.builder.NewRecordBatch()
	return true
}

func (r *sqlReader) fail(err error) bool {
	r.err = err
	r.done = true
	r.rows.Close()
	return false
}

func (r *sqlReader) RecordBatch() arrow.RecordBatch { return r.current }

// Record returns the current batch.
//
// Deprecated: use RecordBatch.
func (r *sqlReader) Record() arrow.RecordBatch { return r.current }

func (r *sqlReader) Err() error { return r.err }

func (r *sqlReader) Retain() { r.refs.Add(1) }

func (r *sqlReader) Release() {
	if r.refs.Add(-1) > 0 {
		return
	}
	if r.current != nil {
		r.current.Release()
		r.current = nil
	}
	r.rows.Close()
	r.builder.Release()
}

// DiscoverSQLCollections creates a collection for every table and view in
// the given database schema. Tables without readable columns are skipped.
func DiscoverSQLCollections(ctx context.Context, db *sql.DB, schemaName string, logger *slog.Logger) ([]Collection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rows, err := db.QueryContext(ctx, `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		ORDER BY table_name`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	collections := make([]Collection, 0, len(names))
	for _, name := range names {
		col, err := NewSQLCollection(ctx, db, SQLCollectionConfig{
			Name:   name,
			Schema: schemaName,
			Logger: logger,
		})
		if err != nil {
			logger.Warn("Skipping table", "schema", schemaName, "table", name, "error", err)
			continue
		}
		collections = append(collections, col)
	}
	return collections, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
