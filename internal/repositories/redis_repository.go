package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/config"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
	"github.com/redis/go-redis/v9"
)

const CartKeyPrefix = "cart"

func CartKey(userID string) string {
	return CartKeyPrefix + ":" + userID
}

// RedisOptions builds client options for the cart store. Context deadlines
// bound socket I/O, so a silent server cannot hold a call past store.timeout.
func RedisOptions(cfg *config.Config) (*redis.Options, error) {
	opt, err := redis.ParseURL(cfg.RedisConnect.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.DB = cfg.RedisConnect.DB
	opt.DialTimeout = cfg.Store.Timeout
	opt.ReadTimeout = cfg.Store.Timeout
	opt.WriteTimeout = cfg.Store.Timeout
	opt.ContextTimeoutEnabled = true

	return opt, nil
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {

	slog.Info("Connecting to Redis", slog.String("url", fmt.Sprintf("redis://%s:<password>@%s:%s", cfg.RedisConnect.Username, cfg.RedisConnect.Host, cfg.RedisConnect.Port)))

	opt, err := RedisOptions(cfg)
	if err != nil {
		slog.Error("Failed to parse Redis URL", slog.Any("error", err))
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A failed ping is logged, not fatal: carts are served from memory until redis answers.
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis not reachable at startup", slog.Any("error", err))
		return client, nil
	}

	slog.Info("✅ Successfully connected to Redis")
	return client, nil

}

type redisCartGateway struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCartGateway bounds every call by timeout. The client must be built
// with ContextTimeoutEnabled (see RedisOptions); otherwise go-redis falls back
// to its own read and write timeouts.
func NewRedisCartGateway(client *redis.Client, timeout time.Duration) CartGateway {
	return &redisCartGateway{client: client, timeout: timeout}
}

func (r *redisCartGateway) Load(ctx context.Context, userID string) (*models.Cart, error) {
	rCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	key := CartKey(userID)

	data, err := r.client.Get(rCtx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCartNotFound
		}
		return nil, classifyRedis(rCtx, fmt.Sprintf("get key %s", key), err)
	}

	cart := &models.Cart{}
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart data for key %s: %w", key, err)
	}

	return cart, nil
}

func (r *redisCartGateway) Save(ctx context.Context, cart *models.Cart) error {
	key := CartKey(cart.UserID)

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}

	rCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	// No expiry: the store is the durable copy.
	if err := r.client.Set(rCtx, key, data, 0).Err(); err != nil {
		return classifyRedis(rCtx, fmt.Sprintf("set key %s", key), err)
	}

	return nil
}

func (r *redisCartGateway) Delete(ctx context.Context, userID string) error {
	rCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	key := CartKey(userID)

	if err := r.client.Del(rCtx, key).Err(); err != nil {
		return classifyRedis(rCtx, fmt.Sprintf("delete key %s", key), err)
	}

	return nil
}

func (r *redisCartGateway) Ping(ctx context.Context) error {
	rCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Ping(rCtx).Err(); err != nil {
		return unavailable("ping", err)
	}

	return nil
}

// Replies redis sends while it is alive but unable to serve the command.
var redisUnavailablePrefixes = []string{"LOADING", "READONLY", "MASTERDOWN", "CLUSTERDOWN", "TRYAGAIN"}

func classifyRedis(ctx context.Context, op string, err error) error {
	if exceededBound(ctx) {
		return unavailable(op, err)
	}

	if errors.Is(err, redis.ErrClosed) || isTransportFailure(err) {
		return unavailable(op, err)
	}

	msg := err.Error()
	for _, prefix := range redisUnavailablePrefixes {
		if strings.HasPrefix(msg, prefix) {
			return unavailable(op, err)
		}
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}
