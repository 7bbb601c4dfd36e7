package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/cache"
	appErrors "github.com/aaravmahajanofficial/dual-tier-cart/internal/errors"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/metrics"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
	repository "github.com/aaravmahajanofficial/dual-tier-cart/internal/repositories"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aaravmahajanofficial/dual-tier-cart/internal/services"

const (
	opGet    = "get"
	opAdd    = "add"
	opUpdate = "update_quantity"
	opRemove = "remove_item"
	opClear  = "clear"
)

// CartEngine is the cart aggregation core consumed by the HTTP layer.
type CartEngine interface {
	Get(ctx context.Context, userID string) (*CartResult, error)
	Add(ctx context.Context, userID string, product models.Product, quantity int, details *models.UserDetails) (*CartResult, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*CartResult, error)
	RemoveItem(ctx context.Context, userID, productID string) (*CartResult, error)
	Clear(ctx context.Context, userID string) (*CartResult, error)
}

// CartResult is a successful outcome. StoreUnavailable reports that the
// durable store could not be reached and the cart lives in memory only.
type CartResult struct {
	Cart             *models.Cart
	StoreUnavailable bool
}

type EngineParams struct {
	Gateway repository.CartGateway
	Memory  *cache.MemoryTier
	Charges models.ChargesFunc
	Logger  *slog.Logger
	Metrics *metrics.CartMetrics
	Now     func() time.Time
}

type CartService struct {
	gateway repository.CartGateway
	memory  *cache.MemoryTier
	locks   *KeyedMutex
	charges models.ChargesFunc
	logger  *slog.Logger
	metrics *metrics.CartMetrics
	now     func() time.Time
	tracer  trace.Tracer

	// signalled after a live save while other carts are still dirty
	kick chan struct{}
}

var _ CartEngine = (*CartService)(nil)

func NewCartService(p EngineParams) *CartService {
	if p.Memory == nil {
		p.Memory = cache.NewMemoryTier()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Now == nil {
		p.Now = time.Now
	}

	return &CartService{
		gateway: p.Gateway,
		memory:  p.Memory,
		locks:   NewKeyedMutex(),
		charges: p.Charges,
		logger:  p.Logger,
		metrics: p.Metrics,
		now:     p.Now,
		tracer:  otel.Tracer(tracerName),
		kick:    make(chan struct{}, 1),
	}
}

// DirtyCount reports carts that still await persistence.
func (s *CartService) DirtyCount() int {
	return s.memory.DirtyCount()
}

// Ping probes the durable store.
func (s *CartService) Ping(ctx context.Context) error {
	return s.gateway.Ping(ctx)
}

func (s *CartService) Get(ctx context.Context, userID string) (*CartResult, error) {
	ctx, span := s.startSpan(ctx, opGet, userID)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, s.fail(span, appErrors.InvalidArgumentError("User ID is required"))
	}

	// Reads do not take the user's section; the snapshot is a private copy.
	if cart, ok := s.memory.Get(userID); ok {
		return &CartResult{Cart: cart}, nil
	}

	cart, err := s.gateway.Load(context.WithoutCancel(ctx), userID)
	switch {
	case err == nil:
		models.RecomputeSummary(cart, s.charges)
		if !s.memory.Seed(cart) {
			// A writer got there first; its copy is newer.
			if current, ok := s.memory.Get(userID); ok {
				cart = current
			}
		}
		return &CartResult{Cart: cart}, nil

	case errors.Is(err, repository.ErrCartNotFound):
		return &CartResult{Cart: s.emptyCart(userID)}, nil

	case errors.Is(err, repository.ErrStoreUnavailable):
		s.logger.WarnContext(ctx, "Cart store unavailable, serving empty cart",
			slog.String("userId", userID), slog.String("error", err.Error()))
		span.SetAttributes(attribute.Bool("cart.store_unavailable", true))
		return &CartResult{Cart: s.emptyCart(userID), StoreUnavailable: true}, nil

	default:
		s.logger.ErrorContext(ctx, "Failed to load cart", slog.String("userId", userID), slog.String("error", err.Error()))
		return nil, s.fail(span, appErrors.InternalError("Failed to load cart").WithError(err))
	}
}

func (s *CartService) Add(ctx context.Context, userID string, product models.Product, quantity int, details *models.UserDetails) (*CartResult, error) {
	ctx, span := s.startSpan(ctx, opAdd, userID)
	defer span.End()

	if err := validateAdd(userID, product, quantity); err != nil {
		s.metrics.Mutation(opAdd, metrics.OutcomeError)
		return nil, s.fail(span, err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.current(ctx, userID)
	if err != nil {
		s.metrics.Mutation(opAdd, metrics.OutcomeError)
		return nil, s.fail(span, err)
	}

	cart := current.cart
	now := s.now()

	if i, ok := cart.FindItem(product.ID); ok {
		existing := cart.Items[i]
		if existing.Quantity > math.MaxInt-quantity {
			s.metrics.Mutation(opAdd, metrics.OutcomeError)
			return nil, s.fail(span, appErrors.AddValidationError("quantity", "exceeds the largest quantity a cart line can hold"))
		}
		cart.Items[i] = itemFromProduct(product, existing.Quantity+quantity, existing.AddedAt)
	} else {
		cart.Items = append(cart.Items, itemFromProduct(product, quantity, now))
	}

	if details != nil {
		d := *details
		cart.UserDetails = &d
	}

	cart.UpdatedAt = now
	models.RecomputeSummary(cart, s.charges)

	result, err := s.persist(ctx, opAdd, cart, false)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.Bool("cart.store_unavailable", result.StoreUnavailable))

	return result, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*CartResult, error) {
	ctx, span := s.startSpan(ctx, opUpdate, userID)
	defer span.End()

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(productID) == "" {
		s.metrics.Mutation(opUpdate, metrics.OutcomeError)
		return nil, s.fail(span, appErrors.InvalidArgumentError("User ID and product ID are required"))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.current(ctx, userID)
	if err != nil {
		s.metrics.Mutation(opUpdate, metrics.OutcomeError)
		return nil, s.fail(span, err)
	}

	if !current.found {
		s.metrics.Mutation(opUpdate, metrics.OutcomeError)
		return nil, s.fail(span, appErrors.NotFoundError("Cart not found"))
	}

	cart := current.cart

	i, ok := cart.FindItem(productID)
	if !ok {
		s.metrics.Mutation(opUpdate, metrics.OutcomeError)
		return nil, s.fail(span, appErrors.NotFoundError("Item not found in the cart"))
	}

	if quantity <= 0 {
		cart.RemoveAt(i)
	} else {
		cart.Items[i].Quantity = quantity
	}

	cart.UpdatedAt = s.now()
	models.RecomputeSummary(cart, s.charges)

	result, err := s.persist(ctx, opUpdate, cart, false)
	if err != nil {
		return nil, s.fail(span, err)
	}

	return result, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*CartResult, error) {
	ctx, span := s.startSpan(ctx, opRemove, userID)
	defer span.End()

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(productID) == "" {
		s.metrics.Mutation(opRemove, metrics.OutcomeError)
		return nil, s.fail(span, appErrors.InvalidArgumentError("User ID and product ID are required"))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.current(ctx, userID)
	if err != nil {
		s.metrics.Mutation(opRemove, metrics.OutcomeError)
		return nil, s.fail(span, err)
	}

	cart := current.cart

	i, ok := cart.FindItem(productID)
	if !ok {
		// nothing to remove, nothing to write
		models.RecomputeSummary(cart, s.charges)
		return &CartResult{Cart: cart, StoreUnavailable: current.unavailable}, nil
	}

	cart.RemoveAt(i)
	cart.UpdatedAt = s.now()
	models.RecomputeSummary(cart, s.charges)

	result, err := s.persist(ctx, opRemove, cart, false)
	if err != nil {
		return nil, s.fail(span, err)
	}

	return result, nil
}

func (s *CartService) Clear(ctx context.Context, userID string) (*CartResult, error) {
	ctx, span := s.startSpan(ctx, opClear, userID)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		s.metrics.Mutation(opClear, metrics.OutcomeError)
		return nil, s.fail(span, appErrors.InvalidArgumentError("User ID is required"))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.current(ctx, userID)
	if err != nil {
		s.metrics.Mutation(opClear, metrics.OutcomeError)
		return nil, s.fail(span, err)
	}

	cart := current.cart

	if !current.found && !current.unavailable {
		// the store confirmed there is no cart: already clear
		return &CartResult{Cart: cart}, nil
	}

	// When the store was unreachable it may still hold items; persisting the
	// empty cart leaves it dirty so reconciliation overwrites them.
	cart.Items = []models.CartItem{}
	cart.UpdatedAt = s.now()
	models.RecomputeSummary(cart, s.charges)

	result, err := s.persist(ctx, opClear, cart, true)
	if err != nil {
		return nil, s.fail(span, err)
	}

	return result, nil
}

type currentCart struct {
	cart        *models.Cart
	found       bool
	unavailable bool
}

// current resolves the cart to mutate: memory first, then the store, then a
// fresh empty cart. Caller holds the user's section.
func (s *CartService) current(ctx context.Context, userID string) (currentCart, error) {
	if cart, ok := s.memory.Get(userID); ok {
		return currentCart{cart: cart, found: true}, nil
	}

	cart, err := s.gateway.Load(context.WithoutCancel(ctx), userID)
	switch {
	case err == nil:
		s.memory.Seed(cart)
		return currentCart{cart: cart, found: true}, nil

	case errors.Is(err, repository.ErrCartNotFound):
		return currentCart{cart: s.emptyCart(userID)}, nil

	case errors.Is(err, repository.ErrStoreUnavailable):
		s.logger.WarnContext(ctx, "Cart store unavailable on load, starting from empty cart",
			slog.String("userId", userID), slog.String("error", err.Error()))
		return currentCart{cart: s.emptyCart(userID), unavailable: true}, nil

	default:
		s.logger.ErrorContext(ctx, "Failed to load cart", slog.String("userId", userID), slog.String("error", err.Error()))
		return currentCart{}, appErrors.InternalError("Failed to load cart").WithError(err)
	}
}

// persist writes the cart through to the store and records the outcome in
// memory. An unreachable store leaves the memory copy dirty; any other store
// fault leaves both tiers untouched.
func (s *CartService) persist(ctx context.Context, op string, cart *models.Cart, remove bool) (*CartResult, error) {
	// The write must not be cut short by the caller going away.
	storeCtx := context.WithoutCancel(ctx)

	var err error
	if remove {
		err = s.gateway.Delete(storeCtx, cart.UserID)
	} else {
		err = s.gateway.Save(storeCtx, cart)
	}

	switch {
	case err == nil:
		s.memory.Put(cart, false)
		s.metrics.Mutation(op, metrics.OutcomeOK)
		s.afterLiveSave()

	case errors.Is(err, repository.ErrStoreUnavailable):
		s.memory.Put(cart, true)
		s.metrics.Mutation(op, metrics.OutcomeDegraded)
		s.logger.WarnContext(ctx, "Cart store unavailable, keeping cart in memory",
			slog.String("op", op), slog.String("userId", cart.UserID), slog.String("error", err.Error()))

	default:
		s.metrics.Mutation(op, metrics.OutcomeError)
		s.logger.ErrorContext(ctx, "Failed to persist cart",
			slog.String("op", op), slog.String("userId", cart.UserID), slog.String("error", err.Error()))
		return nil, appErrors.InternalError("Failed to save cart").WithError(err)
	}

	s.metrics.SetDirty(s.memory.DirtyCount())

	return &CartResult{Cart: cart, StoreUnavailable: err != nil}, nil
}

// afterLiveSave wakes the reconciler when the store is answering again and
// other carts are still waiting for it.
func (s *CartService) afterLiveSave() {
	if s.memory.DirtyCount() == 0 {
		return
	}

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// reconcile writes one dirty cart under its user's section and marks it
// clean if nothing changed meanwhile.
func (s *CartService) reconcile(ctx context.Context, userID string) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	snap, ok := s.memory.Snapshot(userID)
	if !ok || !snap.Dirty {
		return false, nil
	}

	if err := s.gateway.Save(ctx, snap.Cart); err != nil {
		return false, err
	}

	return s.memory.MarkClean(userID, snap.Version), nil
}

func (s *CartService) emptyCart(userID string) *models.Cart {
	cart := models.NewCart(userID, s.now())
	models.RecomputeSummary(cart, s.charges)

	return cart
}

func (s *CartService) startSpan(ctx context.Context, op, userID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "cart."+op, trace.WithAttributes(
		attribute.String("cart.op", op),
		attribute.String("cart.user_id", userID),
	))
}

func (s *CartService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

func validateAdd(userID string, product models.Product, quantity int) error {
	switch {
	case strings.TrimSpace(userID) == "":
		return appErrors.InvalidArgumentError("User ID is required")
	case strings.TrimSpace(product.ID) == "":
		return appErrors.AddValidationError("product.id", "must not be empty")
	case product.Price.IsNegative():
		return appErrors.AddValidationError("product.price", "must not be negative")
	case quantity < 1:
		return appErrors.AddValidationError("quantity", "must be at least 1")
	}

	return nil
}

// itemFromProduct builds a line from the latest product snapshot.
func itemFromProduct(product models.Product, quantity int, addedAt time.Time) models.CartItem {
	item := models.CartItem{
		ID:          product.ID,
		Title:       product.Title,
		Price:       product.Price,
		Quantity:    quantity,
		Image:       product.Image,
		Category:    product.Category,
		Description: product.Description,
		AddedAt:     addedAt,
	}

	if product.Stock != nil {
		stock := *product.Stock
		item.Stock = &stock
	}

	models.RecomputeItemSubtotal(&item)

	return item
}
