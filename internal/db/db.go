// Package db provides the destination relational store: connection setup,
// table bootstrap and the reconciling bulk loader.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// Params holds destination connection parameters.
type Params struct {
	// Driver selects the dialect: "postgres" or "sqlite".
	Driver string

	// Postgres connection parameters.
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	// Schema optionally routes writes via search_path.
	Schema string

	// Path is the database file for the sqlite driver.
	Path string
}

// Open connects to the destination database and verifies the connection.
func Open(ctx context.Context, p Params) (*sql.DB, Dialect, error) {
	var (
		handle  *sql.DB
		dialect Dialect
		err     error
	)

	switch p.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			p.Host, p.Port, p.User, p.Password, p.Name)
		if p.Schema != "" {
			dsn += fmt.Sprintf(" options='-csearch_path=%s'", p.Schema)
		}
		handle, err = sql.Open("pgx", dsn)
		dialect = PostgresDialect{}
	case "sqlite":
		handle, err = sql.Open("sqlite3", p.Path)
		dialect = SQLiteDialect{}
	default:
		return nil, nil, fmt.Errorf("%w: unknown db driver %q", types.ErrConfiguration, p.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s database: %v", types.ErrConnection, p.Driver, err)
	}

	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, nil, fmt.Errorf("%w: ping %s database: %v", types.ErrConnection, p.Driver, err)
	}

	return handle, dialect, nil
}
