package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/XSAM/otelsql"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/config"
	"go.opentelemetry.io/otel/attribute"

	_ "github.com/lib/pq"
)

// OpenPostgres opens an instrumented connection pool. An unreachable server
// is logged rather than returned so the service can start in degraded mode.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {

	db, err := otelsql.Open("postgres", cfg.Database.GetDSN(),
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	pingCtx, cancel := withStoreTimeout(ctx, cfg.Store.Timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		slog.Warn("Database not reachable at startup", slog.String("error", err.Error()))
	}

	return db, nil
}

// NewCartGateway builds the gateway selected by store.driver. The returned
// closer releases the underlying client.
func NewCartGateway(ctx context.Context, cfg *config.Config, db *sql.DB) (CartGateway, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("postgres driver requires a database handle")
		}
		return NewPostgresCartGateway(db, cfg.Store.Timeout), db, nil

	case config.DriverRedis:
		client, err := NewRedisClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisCartGateway(client, cfg.Store.Timeout), client, nil

	case config.DriverDynamoDB:
		client, err := NewDynamoClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, nil, err
		}
		// The SDK client holds no connections that need releasing.
		return NewDynamoCartGateway(client, cfg.DynamoDB.Table, cfg.Store.Timeout), closerFunc(func() error { return nil }), nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
