package parser

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"github.com/mgsv-tools/savedump/internal/document"
	"github.com/mgsv-tools/savedump/internal/models"
)

const (
	DefaultFieldPageSize = 100
	MaxFieldPageSize     = 1000
)

// FieldStoreOptions tunes the DuckDB instance behind a FieldStore.
type FieldStoreOptions struct {
	MemoryLimit string // e.g. "256MB"; empty keeps the DuckDB default
	Threads     int    // 0 keeps the DuckDB default
}

// FieldQuery filters and pages the flattened fields of a document.
type FieldQuery struct {
	// Prefix matches a path and all of its descendants ("Scene.Layers" matches
	// "Scene.Layers.3.Alpha" but not "Scene.LayersX").
	Prefix string
	Kind   string
	Limit  int
	Offset int
}

// FieldStore indexes the leaves of one decoded document in a temporary
// DuckDB file so large saves can be searched and paged without re-walking
// the tree.
type FieldStore struct {
	db       *sql.DB
	dbPath   string
	count    int
	querySem chan struct{}
}

// NewFieldStore creates an empty store for a session in tempDir.
func NewFieldStore(tempDir, sessionID string, opts FieldStoreOptions) (*FieldStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("fields_%s.duckdb", sessionID))

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		var pragmas []string
		if opts.MemoryLimit != "" {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
		}
		if opts.Threads > 0 {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
		}
		pragmas = append(pragmas, "PRAGMA enable_progress_bar=false")
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE fields (
			id    INTEGER PRIMARY KEY,
			path  VARCHAR NOT NULL,
			depth INTEGER NOT NULL,
			kind  VARCHAR NOT NULL,
			value VARCHAR NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &FieldStore{
		db:       db,
		dbPath:   dbPath,
		querySem: make(chan struct{}, 3),
	}, nil
}

// Index appends every leaf of doc and returns the number of rows written.
func (fs *FieldStore) Index(ctx context.Context, doc *document.Value) (int, error) {
	conn, err := fs.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	written := 0
	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "fields")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		err = document.Walk(doc, func(path string, depth int, leaf *document.Value) error {
			id := int32(fs.count + written)
			if err := appender.AppendRow(id, path, int32(depth), leaf.Kind().String(), document.ScalarString(leaf)); err != nil {
				return fmt.Errorf("failed to append %q: %w", path, err)
			}
			written++
			return nil
		})
		if err != nil {
			return err
		}
		return appender.Flush()
	})
	if err != nil {
		return 0, fmt.Errorf("appender error: %w", err)
	}

	fs.count += written
	if _, err := fs.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_path ON fields(path)"); err != nil {
		return written, fmt.Errorf("idx_path creation failed: %w", err)
	}
	return written, nil
}

// Len returns the number of indexed fields.
func (fs *FieldStore) Len() int {
	return fs.count
}

// Query returns the matching rows in document order and the total match count.
func (fs *FieldStore) Query(ctx context.Context, q FieldQuery) ([]models.FieldRow, int, error) {
	select {
	case fs.querySem <- struct{}{}:
		defer func() { <-fs.querySem }()
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultFieldPageSize
	}
	if limit > MaxFieldPageSize {
		limit = MaxFieldPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := buildFieldWhere(q)

	var total int
	countQuery := "SELECT COUNT(*) FROM fields" + where
	if err := fs.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}
	if total == 0 {
		return []models.FieldRow{}, 0, nil
	}

	rows, err := fs.db.QueryContext(ctx,
		"SELECT path, depth, kind, value FROM fields"+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("field query failed: %w", err)
	}
	defer rows.Close()

	out := make([]models.FieldRow, 0, limit)
	for rows.Next() {
		var r models.FieldRow
		if err := rows.Scan(&r.Path, &r.Depth, &r.Kind, &r.Value); err != nil {
			return nil, 0, fmt.Errorf("scanning field row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// KindCounts returns the number of leaves per value kind.
func (fs *FieldStore) KindCounts(ctx context.Context) (map[string]int, error) {
	rows, err := fs.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM fields GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("kind query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func buildFieldWhere(q FieldQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if prefix := strings.TrimSuffix(q.Prefix, "."); prefix != "" {
		conds = append(conds, "(path = ? OR starts_with(path, ?))")
		args = append(args, prefix, prefix+".")
	}
	if q.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, strings.ToLower(q.Kind))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Close closes the database and removes the temp file.
func (fs *FieldStore) Close() error {
	var err error
	if fs.db != nil {
		err = fs.db.Close()
	}
	if fs.dbPath != "" {
		os.Remove(fs.dbPath)
		os.Remove(fs.dbPath + ".wal")
	}
	return err
}
