package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
	repository "github.com/aaravmahajanofficial/dual-tier-cart/internal/repositories"
	"github.com/stretchr/testify/mock"
)

// fakeGateway is an in-memory store that can be switched off.
type fakeGateway struct {
	mu      sync.Mutex
	carts   map[string]*models.Cart
	down    bool
	loads   int
	saves   int
	deletes int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{carts: map[string]*models.Cart{}}
}

func (g *fakeGateway) setDown(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.down = down
}

func (g *fakeGateway) stored(userID string) (*models.Cart, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cart, ok := g.carts[userID]
	return cart.Clone(), ok
}

func (g *fakeGateway) counts() (loads, saves, deletes int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loads, g.saves, g.deletes
}

func (g *fakeGateway) unavailable(op string) error {
	return fmt.Errorf("%s: connection refused: %w", op, repository.ErrStoreUnavailable)
}

func (g *fakeGateway) Load(_ context.Context, userID string) (*models.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads++
	if g.down {
		return nil, g.unavailable("load")
	}
	cart, ok := g.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (g *fakeGateway) Save(_ context.Context, cart *models.Cart) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.down {
		return g.unavailable("save")
	}
	g.carts[cart.UserID] = cart.Clone()
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes++
	if g.down {
		return g.unavailable("delete")
	}
	delete(g.carts, userID)
	return nil
}

func (g *fakeGateway) Ping(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return g.unavailable("ping")
	}
	return nil
}

// mockGateway is a testify mock for paths the fake cannot express.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Load(ctx context.Context, userID string) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) Save(ctx context.Context, cart *models.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockGateway) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockGateway) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fixedClock advances one second per call so timestamps are distinct.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
