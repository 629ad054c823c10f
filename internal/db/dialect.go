package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// Dialect captures the SQL differences between destination stores. Values
// are always bound as parameters; identifiers are validated by the Loader
// before they reach any statement.
type Dialect interface {
	Name() string

	// CreateTableSQL returns the bootstrap DDL. The natural key is declared
	// primary key from inception.
	CreateTableSQL(table string) string

	// DropPrimaryKey removes the primary-key constraint for the bulk-load
	// window. An error is tolerated by the loader (fresh tables, or engines
	// that cannot drop the constraint) and logged, never fatal.
	DropPrimaryKey(ctx context.Context, db *sql.DB, table string) error

	// InsertSQL returns a multi-row insert statement for n rows.
	InsertSQL(table string, n int) string

	// DeleteDuplicates removes all but one physical row per natural-key
	// value, keeping the row with the lowest internal row identifier.
	DeleteDuplicates(ctx context.Context, db *sql.DB, table, keyCol string) error

	// RestorePrimaryKey re-attaches (or re-verifies) the key constraint.
	// Failure wraps types.ErrInvariant and halts the run.
	RestorePrimaryKey(ctx context.Context, db *sql.DB, table, keyCol string) error
}

// PostgresDialect implements the drop/append/dedup/re-add protocol literally.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id INTEGER PRIMARY KEY,
		smiles TEXT,
		std_inchi TEXT,
		std_inchikey VARCHAR(27)
	)`, table)
}

func (PostgresDialect) DropPrimaryKey(ctx context.Context, db *sql.DB, table string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %q DROP CONSTRAINT %q`, table, table+"_pkey"))
	return err
}

func (PostgresDialect) InsertSQL(table string, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `INSERT INTO %q (id, smiles, std_inchi, std_inchikey) VALUES `, table)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
	}
	return sb.String()
}

// DeleteDuplicates keeps the row with the lowest ctid per key, so the
// earliest-inserted row survives.
func (PostgresDialect) DeleteDuplicates(ctx context.Context, db *sql.DB, table, keyCol string) error {
	stmt := fmt.Sprintf(`
		DELETE FROM %[1]q t1
		USING %[1]q t2
		WHERE t1.ctid > t2.ctid
		  AND t1.%[2]q = t2.%[2]q`, table, keyCol)
	_, err := db.ExecContext(ctx, stmt)
	return err
}

func (PostgresDialect) RestorePrimaryKey(ctx context.Context, db *sql.DB, table, keyCol string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %q ADD PRIMARY KEY (%q)`, table, keyCol))
	if err != nil {
		return fmt.Errorf("%w: re-add primary key on %s: %v", types.ErrInvariant, table, err)
	}
	return nil
}

// SQLiteDialect adapts the protocol to an engine that cannot drop a
// primary-key constraint: the inception key stays attached and the bulk
// append uses INSERT OR IGNORE, which yields the same earliest-inserted-wins
// policy without ever exposing duplicates.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id INTEGER PRIMARY KEY,
		smiles TEXT,
		std_inchi TEXT,
		std_inchikey VARCHAR(27)
	)`, table)
}

func (SQLiteDialect) DropPrimaryKey(ctx context.Context, db *sql.DB, table string) error {
	return fmt.Errorf("sqlite cannot drop primary key constraints")
}

func (SQLiteDialect) InsertSQL(table string, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `INSERT OR IGNORE INTO %q (id, smiles, std_inchi, std_inchikey) VALUES `, table)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
	}
	return sb.String()
}

// DeleteDuplicates keeps the row with the lowest rowid per key. With the
// OR IGNORE append this is a no-op, but the protocol phase is kept so a
// future constraint-free load path stays correct.
func (SQLiteDialect) DeleteDuplicates(ctx context.Context, db *sql.DB, table, keyCol string) error {
	stmt := fmt.Sprintf(`
		DELETE FROM %[1]q
		WHERE rowid NOT IN (
			SELECT MIN(rowid) FROM %[1]q GROUP BY %[2]q
		)`, table, keyCol)
	_, err := db.ExecContext(ctx, stmt)
	return err
}

// RestorePrimaryKey verifies key uniqueness, since the constraint itself was
// never detached.
func (SQLiteDialect) RestorePrimaryKey(ctx context.Context, db *sql.DB, table, keyCol string) error {
	stmt := fmt.Sprintf(`SELECT COUNT(*) - COUNT(DISTINCT %q) FROM %q`, keyCol, table)

	var surplus int64
	if err := db.QueryRowContext(ctx, stmt).Scan(&surplus); err != nil {
		return fmt.Errorf("%w: verify key uniqueness on %s: %v", types.ErrInvariant, table, err)
	}
	if surplus != 0 {
		return fmt.Errorf("%w: %d duplicate %s values remain in %s", types.ErrInvariant, surplus, keyCol, table)
	}
	return nil
}
