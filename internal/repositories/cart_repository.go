package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
	"github.com/lib/pq"
)

type postgresCartGateway struct {
	DB      *sql.DB
	timeout time.Duration
}

func NewPostgresCartGateway(db *sql.DB, timeout time.Duration) CartGateway {
	return &postgresCartGateway{DB: db, timeout: timeout}
}

func (r *postgresCartGateway) Load(ctx context.Context, userID string) (*models.Cart, error) {
	dbCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT document
		FROM carts
		WHERE user_id = $1
	`

	var document []byte

	err := r.DB.QueryRowContext(dbCtx, query, userID).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, classifyPostgres(dbCtx, "load cart", err)
	}

	cart := &models.Cart{}
	if err := json.Unmarshal(document, cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart document: %w", err)
	}

	return cart, nil
}

func (r *postgresCartGateway) Save(ctx context.Context, cart *models.Cart) error {
	document, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart document: %w", err)
	}

	dbCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO carts (user_id, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.DB.ExecContext(dbCtx, query, cart.UserID, document, cart.UpdatedAt); err != nil {
		return classifyPostgres(dbCtx, "save cart", err)
	}

	return nil
}

func (r *postgresCartGateway) Delete(ctx context.Context, userID string) error {
	dbCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `DELETE FROM carts WHERE user_id = $1`

	if _, err := r.DB.ExecContext(dbCtx, query, userID); err != nil {
		return classifyPostgres(dbCtx, "delete cart", err)
	}

	return nil
}

func (r *postgresCartGateway) Ping(ctx context.Context) error {
	dbCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.DB.PingContext(dbCtx); err != nil {
		return unavailable("ping", err)
	}

	return nil
}

// SQLSTATE classes that mean the server is unreachable or refusing work.
var unavailableClasses = map[pq.ErrorClass]struct{}{
	"08": {}, // connection exception
	"53": {}, // insufficient resources
	"57": {}, // operator intervention
}

func classifyPostgres(ctx context.Context, op string, err error) error {
	if exceededBound(ctx) {
		return unavailable(op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if _, ok := unavailableClasses[pqErr.Code.Class()]; ok {
			return unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if isTransportFailure(err) {
		return unavailable(op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
