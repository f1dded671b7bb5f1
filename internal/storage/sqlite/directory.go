// Package sqlite resolves delivery endpoints from a local SQLite database.
// It is intended for development and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// DefaultTable holds one row per registered device token.
const DefaultTable = "user_fcm_tokens"

// Open opens the database at path and verifies the connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}
	return db, nil
}

// EnsureSchema creates the token table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB, table string) error {
	if table == "" {
		table = DefaultTable
	}
	ident := quote(table)
	stmt := `CREATE TABLE IF NOT EXISTS ` + ident + ` (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		token      TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS ` + quote(table+"_user_id_idx") + ` ON ` + ident + ` (user_id);`
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// Directory selects tokens by exact user_id match.
type Directory struct {
	db    *sql.DB
	query string
}

func NewDirectory(db *sql.DB, table string) *Directory {
	if table == "" {
		table = DefaultTable
	}
	return &Directory{
		db:    db,
		query: `SELECT token FROM ` + quote(table) + ` WHERE user_id = ?`,
	}
}

func (d *Directory) Lookup(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error) {
	rows, err := d.db.QueryContext(ctx, d.query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	endpoints := make([]notification.DeliveryEndpoint, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		endpoints = append(endpoints, notification.DeliveryEndpoint{Token: token})
	}
	return endpoints, rows.Err()
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
