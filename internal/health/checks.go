package health

import (
	"context"
	"fmt"
	"time"

	"github.com/hellofresh/health-go/v5"
)

// StoreProber is the part of the cart engine the checks look at.
type StoreProber interface {
	Ping(ctx context.Context) error
	DirtyCount() int
}

type Options struct {
	ServiceName string
	Version     string
	// MaxDirty is the reconciliation backlog above which the service reports
	// itself unhealthy. Zero disables the limit.
	MaxDirty     int
	StoreTimeout time.Duration
}

func NewHealthHandler(engine StoreProber, opts Options) (*health.Health, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "dual-tier-cart"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}

	h, err := health.New(
		health.WithComponent(health.Component{
			Name:    opts.ServiceName,
			Version: opts.Version,
		}),
		health.WithSystemInfo(),
		health.WithChecks(
			health.Config{
				Name:    "cart-store",
				Timeout: opts.StoreTimeout,
				// carts keep being served from memory while the store is down
				SkipOnErr: true,
				Check:     engine.Ping,
			},
			health.Config{
				Name:      "reconciliation-backlog",
				Timeout:   time.Second,
				SkipOnErr: false,
				Check:     BacklogCheck(engine, opts.MaxDirty),
			},
		),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create health instance: %w", err)
	}

	return h, nil
}

// BacklogCheck fails once more than maxDirty carts await persistence.
func BacklogCheck(engine StoreProber, maxDirty int) func(context.Context) error {
	return func(context.Context) error {
		if maxDirty <= 0 {
			return nil
		}

		if n := engine.DirtyCount(); n > maxDirty {
			return fmt.Errorf("%d carts awaiting persistence, limit is %d", n, maxDirty)
		}

		return nil
	}
}
