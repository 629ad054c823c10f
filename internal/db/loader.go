package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"

	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// insertBatchSize bounds the number of rows per multi-row insert statement.
const insertBatchSize = 500

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Loader writes row sets into the destination table while maintaining the
// natural-key uniqueness invariant across the bulk-load window.
//
// The protocol is: drop the primary key (tolerating absence), bulk-append
// all rows without pre-checking for overlap, delete all but the
// lowest-row-id row per key, then re-attach the key. The table may hold
// duplicates between the append and dedup phases; runs must therefore be
// externally serialized.
type Loader struct {
	db      *sql.DB
	dialect Dialect
	table   string
	keyCol  string
	logger  *log.Logger
}

// NewLoader creates a loader for the given table and natural-key column.
// Identifiers are validated here; values are always bound as parameters.
func NewLoader(handle *sql.DB, dialect Dialect, table, keyCol string, logger *log.Logger) (*Loader, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", types.ErrConfiguration, table)
	}
	if !identPattern.MatchString(keyCol) {
		return nil, fmt.Errorf("%w: invalid key column %q", types.ErrConfiguration, keyCol)
	}
	return &Loader{
		db:      handle,
		dialect: dialect,
		table:   table,
		keyCol:  keyCol,
		logger:  logger,
	}, nil
}

// EnsureTable creates the destination table if it does not exist, with the
// natural key declared primary key from inception.
func (l *Loader) EnsureTable(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, l.dialect.CreateTableSQL(l.table)); err != nil {
		return fmt.Errorf("create table %s: %w", l.table, err)
	}
	return nil
}

// Count returns the current number of rows in the destination table.
func (l *Loader) Count(ctx context.Context) (int64, error) {
	var count int64
	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %q`, l.table)
	if err := l.db.QueryRowContext(ctx, stmt).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", l.table, err)
	}
	return count, nil
}

// Load merges a row set into the destination table. Overlap with existing
// rows is expected and resolved by the dedup phase; the earliest-inserted
// row wins for each natural key. A failure to restore the key constraint is
// fatal and surfaces types.ErrInvariant.
func (l *Loader) Load(ctx context.Context, set *types.RowSet) error {
	if set.Len() == 0 {
		return nil
	}

	if err := l.dialect.DropPrimaryKey(ctx, l.db, l.table); err != nil {
		l.logger.Printf("Could not drop primary key on %s, continuing: %v", l.table, err)
	}

	if err := l.appendRows(ctx, set.Records()); err != nil {
		return err
	}

	if err := l.dialect.DeleteDuplicates(ctx, l.db, l.table, l.keyCol); err != nil {
		return fmt.Errorf("dedup %s: %w", l.table, err)
	}

	return l.dialect.RestorePrimaryKey(ctx, l.db, l.table, l.keyCol)
}

// appendRows bulk-inserts records in batches.
func (l *Loader) appendRows(ctx context.Context, records []types.Record) error {
	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		args := make([]interface{}, 0, len(batch)*4)
		for _, rec := range batch {
			args = append(args, rec.ID, rec.SMILES, rec.StdInChI, rec.StdInChIKey)
		}

		stmt := l.dialect.InsertSQL(l.table, len(batch))
		if _, err := l.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("append %d rows to %s: %w", len(batch), l.table, err)
		}
	}
	return nil
}

// Table returns the destination table name.
func (l *Loader) Table() string { return l.table }
