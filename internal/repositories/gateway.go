package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
)

var (
	// ErrCartNotFound means the store answered and holds no cart for the user.
	ErrCartNotFound = errors.New("cart not found")
	// ErrStoreUnavailable means the store could not be reached in time.
	ErrStoreUnavailable = errors.New("cart store unavailable")
)

const DefaultStoreTimeout = 2 * time.Second

// CartGateway persists whole cart documents keyed by user id. Save replaces
// the stored document atomically; Delete of an absent cart is not an error.
type CartGateway interface {
	Load(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}

	return context.WithTimeout(ctx, timeout)
}

// exceededBound reports whether the store call outlived its bound. Clients
// describe an expired deadline in their own words, so the context decides.
func exceededBound(ctx context.Context) bool {
	return ctx.Err() != nil
}

// isTransportFailure reports connectivity problems shared by every backend.
func isTransportFailure(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}

func unavailable(op string, err error) error {
	return &storeError{op: op, kind: ErrStoreUnavailable, err: err}
}

type storeError struct {
	op   string
	kind error
	err  error
}

func (e *storeError) Error() string {
	return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
}

func (e *storeError) Unwrap() []error {
	return []error{e.kind, e.err}
}
