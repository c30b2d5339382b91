package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name:       "sqlite",
	schemaFile: "schema/sqlite.sql",
	upsertArticle: `
		INSERT INTO articles (sku, name, name_key, quantity, reserved, version, updated_at)
		VALUES (:sku, :name, :name_key, :quantity, :reserved, :version, :updated_at)
		ON CONFLICT(sku) DO UPDATE SET
			name = excluded.name,
			name_key = excluded.name_key,
			quantity = excluded.quantity,
			reserved = excluded.reserved,
			version = excluded.version,
			updated_at = excluded.updated_at`,
}

// OpenSQLite creates or opens the database file at path and applies the
// schema. The handle is limited to one connection since SQLite has a single
// writer.
func OpenSQLite(ctx context.Context, path string) (*SQLAdapter, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	adapter := &SQLAdapter{db: db, dialect: sqliteDialect}
	if err := adapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return adapter, nil
}
