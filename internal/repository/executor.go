package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrActiveOrderExists is returned when an insert collides with the
	// (offer, participant) uniqueness of non-cancelled orders
	ErrActiveOrderExists = errors.New("active order already exists for offer and participant")
	// ErrConditionFailed is returned when a guarded UPDATE matched no row
	ErrConditionFailed = errors.New("row did not match update condition")
)

const (
	campaignsTable = "groupbuy_campaigns"
	offersTable    = "groupbuy_offers"
	ordersTable    = "groupbuy_orders"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgerrcode.UniqueViolation
}
