package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// DefaultTable holds one row per registered device token.
const DefaultTable = "public.user_fcm_tokens"

// Querier is the subset of pgxpool.Pool used by the directory.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Directory selects tokens by exact user_id match.
type Directory struct {
	db    Querier
	query string
}

func NewDirectory(db Querier, table string) *Directory {
	if table == "" {
		table = DefaultTable
	}
	return &Directory{
		db:    db,
		query: fmt.Sprintf("SELECT token FROM %s WHERE user_id = $1", tableIdentifier(table)),
	}
}

func (d *Directory) Lookup(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error) {
	rows, err := d.db.Query(ctx, d.query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}

	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tokens: %w", err)
	}

	endpoints := make([]notification.DeliveryEndpoint, 0, len(tokens))
	for _, token := range tokens {
		endpoints = append(endpoints, notification.DeliveryEndpoint{Token: token})
	}
	return endpoints, nil
}
