package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

//go:embed schema/*.sql
var schemaFS embed.FS

type dialect struct {
	name          string
	schemaFile    string
	upsertArticle string
}

// SQLAdapter persists articles and change log entries in one SQL database.
// It implements port.ArticleRepository and port.ChangeLogRepository.
type SQLAdapter struct {
	db      *sqlx.DB
	dialect dialect
}

type articleRow struct {
	Sku       int64     `db:"sku"`
	Name      string    `db:"name"`
	NameKey   string    `db:"name_key"`
	Quantity  int       `db:"quantity"`
	Reserved  int       `db:"reserved"`
	Version   int       `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

type entryRow struct {
	Position        int64     `db:"log_position"`
	OperationID     string    `db:"operation_id"`
	Sku             int64     `db:"sku"`
	Delta           int       `db:"delta"`
	Type            string    `db:"op_type"`
	Reason          string    `db:"reason"`
	ExpectedVersion int       `db:"expected_version"`
	StoreID         string    `db:"store_id"`
	SubmittedAt     time.Time `db:"submitted_at"`
}

func newArticleRow(a domain.Article) articleRow {
	return articleRow{
		Sku:       a.Sku,
		Name:      a.Name,
		NameKey:   domain.NameKey(a.Name),
		Quantity:  a.Quantity,
		Reserved:  a.Reserved,
		Version:   a.Version,
		UpdatedAt: a.UpdatedAt.UTC(),
	}
}

func (r articleRow) article() domain.Article {
	return domain.Article{
		Sku:       r.Sku,
		Name:      r.Name,
		Quantity:  r.Quantity,
		Reserved:  r.Reserved,
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newEntryRow(e domain.ChangeLogEntry) entryRow {
	op := e.Operation
	return entryRow{
		Position:        e.Position,
		OperationID:     op.OperationID.String(),
		Sku:             op.Sku,
		Delta:           op.Delta,
		Type:            string(op.Type),
		Reason:          op.Reason,
		ExpectedVersion: op.ExpectedVersion,
		StoreID:         op.StoreID,
		SubmittedAt:     op.SubmittedAt.UTC(),
	}
}

func (r entryRow) entry() (domain.ChangeLogEntry, error) {
	id, err := uuid.Parse(r.OperationID)
	if err != nil {
		return domain.ChangeLogEntry{}, fmt.Errorf("entry %d: parse operation id: %w", r.Position, err)
	}
	return domain.ChangeLogEntry{
		Position: r.Position,
		Operation: domain.Operation{
			OperationID:     id,
			Sku:             r.Sku,
			Delta:           r.Delta,
			Type:            domain.OperationType(r.Type),
			Reason:          r.Reason,
			ExpectedVersion: r.ExpectedVersion,
			StoreID:         r.StoreID,
			SubmittedAt:     r.SubmittedAt.UTC(),
		},
	}, nil
}

// Migrate applies the dialect schema. Safe to call repeatedly.
func (a *SQLAdapter) Migrate(ctx context.Context) error {
	raw, err := schemaFS.ReadFile(a.dialect.schemaFile)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", a.dialect.name, err)
		}
	}
	return nil
}

func (a *SQLAdapter) DB() *sqlx.DB {
	return a.db
}

func (a *SQLAdapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *SQLAdapter) GetArticle(ctx context.Context, sku int64) (*domain.Article, error) {
	var row articleRow
	err := a.db.GetContext(ctx, &row, `
		SELECT sku, name, name_key, quantity, reserved, version, updated_at
		FROM articles WHERE sku = ?`, sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query article: %w", err)
	}
	art := row.article()
	return &art, nil
}

func (a *SQLAdapter) FindArticleByName(ctx context.Context, name string) (*domain.Article, error) {
	var row articleRow
	err := a.db.GetContext(ctx, &row, `
		SELECT sku, name, name_key, quantity, reserved, version, updated_at
		FROM articles WHERE name_key = ?`, domain.NameKey(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query article by name: %w", err)
	}
	art := row.article()
	return &art, nil
}

func (a *SQLAdapter) ListArticles(ctx context.Context) ([]domain.Article, error) {
	var rows []articleRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT sku, name, name_key, quantity, reserved, version, updated_at
		FROM articles ORDER BY sku ASC`)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	articles := make([]domain.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, r.article())
	}
	return articles, nil
}

func (a *SQLAdapter) UpsertArticle(ctx context.Context, art domain.Article) error {
	if _, err := a.db.NamedExecContext(ctx, a.dialect.upsertArticle, newArticleRow(art)); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

func (a *SQLAdapter) DeleteArticle(ctx context.Context, sku int64) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM articles WHERE sku = ?`, sku); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

func (a *SQLAdapter) MaxSku(ctx context.Context) (int64, error) {
	var sku int64
	if err := a.db.GetContext(ctx, &sku, `SELECT COALESCE(MAX(sku), 0) FROM articles`); err != nil {
		return 0, fmt.Errorf("query max sku: %w", err)
	}
	return sku, nil
}

func (a *SQLAdapter) AppendEntry(ctx context.Context, e domain.ChangeLogEntry) error {
	_, err := a.db.NamedExecContext(ctx, `
		INSERT INTO change_log
		(log_position, operation_id, sku, delta, op_type, reason, expected_version, store_id, submitted_at)
		VALUES (:log_position, :operation_id, :sku, :delta, :op_type, :reason, :expected_version, :store_id, :submitted_at)`,
		newEntryRow(e),
	)
	if err != nil {
		return fmt.Errorf("insert change log entry: %w", err)
	}
	return nil
}

func (a *SQLAdapter) ReadEntries(ctx context.Context, from int64, limit int) ([]domain.ChangeLogEntry, error) {
	var rows []entryRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT log_position, operation_id, sku, delta, op_type, reason, expected_version, store_id, submitted_at
		FROM change_log
		WHERE log_position > ?
		ORDER BY log_position ASC
		LIMIT ?`, from, limit)
	if err != nil {
		return nil, fmt.Errorf("query change log: %w", err)
	}

	entries := make([]domain.ChangeLogEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (a *SQLAdapter) ScanEntries(ctx context.Context, fn func(domain.ChangeLogEntry) error) error {
	rows, err := a.db.QueryxContext(ctx, `
		SELECT log_position, operation_id, sku, delta, op_type, reason, expected_version, store_id, submitted_at
		FROM change_log
		ORDER BY log_position ASC`)
	if err != nil {
		return fmt.Errorf("query change log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r entryRow
		if err := rows.StructScan(&r); err != nil {
			return fmt.Errorf("scan change log entry: %w", err)
		}
		e, err := r.entry()
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate change log: %w", err)
	}
	return nil
}
