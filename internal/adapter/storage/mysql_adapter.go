package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var mysqlDialect = dialect{
	name:       "mysql",
	schemaFile: "schema/mysql.sql",
	upsertArticle: `
		INSERT INTO articles (sku, name, name_key, quantity, reserved, version, updated_at)
		VALUES (:sku, :name, :name_key, :quantity, :reserved, :version, :updated_at)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			name_key = VALUES(name_key),
			quantity = VALUES(quantity),
			reserved = VALUES(reserved),
			version = VALUES(version),
			updated_at = VALUES(updated_at)`,
}

type MySQLOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewMySQLAdapter wraps an open handle. The DSN must carry parseTime=true.
func NewMySQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: sqlx.NewDb(db, "mysql"), dialect: mysqlDialect}
}

// OpenMySQL connects, pings and migrates.
func OpenMySQL(ctx context.Context, dsn string, opts MySQLOptions) (*SQLAdapter, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	adapter := NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return adapter, nil
}
