package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"
)

const (
	DefaultReconcileInterval = 15 * time.Second
	DefaultInitialBackoff    = time.Second
	DefaultMaxBackoff        = 5 * time.Minute
)

type ReconcilerParams struct {
	Engine         *CartService
	Logger         *slog.Logger
	Metrics        *metrics.CartMetrics
	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Reconciler pushes carts that were kept in memory during a store outage
// back to the store once it answers again.
type Reconciler struct {
	engine         *CartService
	logger         *slog.Logger
	metrics        *metrics.CartMetrics
	interval       time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// serializes cycles; guards retries
	mu      sync.Mutex
	retries map[string]*retryState
}

type retryState struct {
	policy backoff.BackOff
	next   time.Time
}

func NewReconciler(p ReconcilerParams) *Reconciler {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Interval <= 0 {
		p.Interval = DefaultReconcileInterval
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = max(DefaultMaxBackoff, p.InitialBackoff)
	}

	return &Reconciler{
		engine:         p.Engine,
		logger:         p.Logger,
		metrics:        p.Metrics,
		interval:       p.Interval,
		initialBackoff: p.InitialBackoff,
		maxBackoff:     p.MaxBackoff,
		retries:        make(map[string]*retryState),
	}
}

// Run reconciles on every tick, and early whenever the engine reports a live
// save while carts are still dirty. It returns when ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Reconciler started", slog.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return nil
		case <-ticker.C:
			_ = r.cycle(ctx, false)
		case <-r.engine.kick:
			_ = r.cycle(ctx, false)
		}
	}
}

// Flush runs one cycle that ignores backoff windows.
func (r *Reconciler) Flush(ctx context.Context) error {
	return r.cycle(ctx, true)
}

func (r *Reconciler) cycle(ctx context.Context, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.engine.now()
	defer func() {
		r.metrics.ObserveCycle(r.engine.now().Sub(start))
		r.metrics.SetDirty(r.engine.memory.DirtyCount())
	}()

	dirty := r.engine.memory.DirtyKeys()
	r.forgetClean(dirty)

	if len(dirty) == 0 {
		return nil
	}

	if err := r.engine.gateway.Ping(ctx); err != nil {
		r.logger.Debug("Cart store still unavailable, postponing reconciliation",
			slog.Int("dirty", len(dirty)), slog.String("error", err.Error()))
		return fmt.Errorf("probe cart store: %w", err)
	}

	var errs error
	saved := 0

	for _, userID := range dirty {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		state := r.retries[userID]
		now := r.engine.now()

		if !force && state != nil && now.Before(state.next) {
			r.metrics.ReconcileAttempt(metrics.ReconcileSkipped)
			continue
		}

		cleaned, err := r.engine.reconcile(ctx, userID)
		if err == nil {
			delete(r.retries, userID)
			if cleaned {
				saved++
				r.metrics.ReconcileAttempt(metrics.ReconcileSaved)
			}
			continue
		}

		r.metrics.ReconcileAttempt(metrics.ReconcileFailed)

		if state == nil {
			state = &retryState{policy: r.newBackoff()}
			r.retries[userID] = state
		}
		state.next = now.Add(state.policy.NextBackOff())

		errs = multierr.Append(errs, fmt.Errorf("reconcile cart %s: %w", userID, err))
	}

	if errs != nil {
		r.logger.Warn("Reconciliation cycle finished with failures",
			slog.Int("saved", saved),
			slog.Int("failed", len(multierr.Errors(errs))),
			slog.String("error", errs.Error()))
		return errs
	}

	if saved > 0 {
		r.logger.Info("Reconciled carts with store", slog.Int("saved", saved))
	}

	return nil
}

// forgetClean drops backoff state of users that are no longer dirty.
func (r *Reconciler) forgetClean(dirty []string) {
	if len(r.retries) == 0 {
		return
	}

	keep := make(map[string]struct{}, len(dirty))
	for _, userID := range dirty {
		keep[userID] = struct{}{}
	}

	for userID := range r.retries {
		if _, ok := keep[userID]; !ok {
			delete(r.retries, userID)
		}
	}
}

func (r *Reconciler) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialBackoff
	b.MaxInterval = r.maxBackoff
	// never give up: the entry stays dirty until the store accepts it
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}
