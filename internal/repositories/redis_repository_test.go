package repository_test

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/config"
	repository "github.com/aaravmahajanofficial/dual-tier-cart/internal/repositories"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisGatewayTest(t *testing.T) (repository.CartGateway, redismock.ClientMock) {
	t.Helper()

	client, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		client.Close()
	})

	return repository.NewRedisCartGateway(client, time.Second), mock
}

func TestRedisCartGateway_Load(t *testing.T) {
	ctx := t.Context()

	t.Run("Success - Cart Found", func(t *testing.T) {
		// Arrange
		gateway, mock := setupRedisGatewayTest(t)
		document, err := json.Marshal(testCart("user-1"))
		require.NoError(t, err)

		mock.ExpectGet(repository.CartKey("user-1")).SetVal(string(document))

		// Act
		cart, err := gateway.Load(ctx, "user-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "user-1", cart.UserID)
		assert.Equal(t, 2, cart.OrderSummary.TotalQuantity)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Missing Key", func(t *testing.T) {
		// Arrange
		gateway, mock := setupRedisGatewayTest(t)
		mock.ExpectGet(repository.CartKey("ghost")).SetErr(redis.Nil)

		// Act
		cart, err := gateway.Load(ctx, "ghost")

		// Assert
		assert.Nil(t, cart)
		assert.ErrorIs(t, err, repository.ErrCartNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Loading Reply Is Unavailable", func(t *testing.T) {
		// Arrange
		gateway, mock := setupRedisGatewayTest(t)
		mock.ExpectGet(repository.CartKey("user-1")).
			SetErr(errors.New("LOADING Redis is loading the dataset in memory"))

		// Act
		_, err := gateway.Load(ctx, "user-1")

		// Assert
		assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Closed Client Is Unavailable", func(t *testing.T) {
		// Arrange
		gateway, mock := setupRedisGatewayTest(t)
		mock.ExpectGet(repository.CartKey("user-1")).SetErr(redis.ErrClosed)

		// Act
		_, err := gateway.Load(ctx, "user-1")

		// Assert
		assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
		assert.ErrorIs(t, err, redis.ErrClosed)
	})

	t.Run("Failure - Wrong Type Is Internal", func(t *testing.T) {
		// Arrange
		gateway, mock := setupRedisGatewayTest(t)
		mock.ExpectGet(repository.CartKey("user-1")).
			SetErr(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))

		// Act
		_, err := gateway.Load(ctx, "user-1")

		// Assert
		require.Error(t, err)
		assert.NotErrorIs(t, err, repository.ErrStoreUnavailable)
		assert.NotErrorIs(t, err, repository.ErrCartNotFound)
	})
}

func TestRedisCartGateway_SaveDeletePing(t *testing.T) {
	ctx := t.Context()

	t.Run("Success - Save Without Expiry", func(t *testing.T) {
		// Arrange
		gateway, mock := setupRedisGatewayTest(t)
		cart := testCart("user-1")
		document, err := json.Marshal(cart)
		require.NoError(t, err)

		mock.ExpectSet(repository.CartKey("user-1"), document, 0).SetVal("OK")

		// Act
		err = gateway.Save(ctx, cart)

		// Assert
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - Delete", func(t *testing.T) {
		// Arrange
		gateway, mock := setupRedisGatewayTest(t)
		mock.ExpectDel(repository.CartKey("user-1")).SetVal(0)

		// Act
		err := gateway.Delete(ctx, "user-1")

		// Assert
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Ping Error Is Unavailable", func(t *testing.T) {
		// Arrange
		gateway, mock := setupRedisGatewayTest(t)
		mock.ExpectPing().SetErr(errors.New("dial tcp: connection refused"))

		// Act
		err := gateway.Ping(ctx)

		// Assert
		assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// silentRedis accepts connections and never answers them.
func silentRedis(t *testing.T) (host, port string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			conn.Close()
		}
	})

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	return host, port
}

func TestRedisOptions(t *testing.T) {
	t.Run("Success - Deadlines Follow The Context", func(t *testing.T) {
		cfg := &config.Config{
			RedisConnect: config.RedisConnect{Host: "localhost", Port: "6379", DB: 2},
			Store:        config.Store{Timeout: 3 * time.Second},
		}

		opt, err := repository.RedisOptions(cfg)

		require.NoError(t, err)
		assert.True(t, opt.ContextTimeoutEnabled)
		assert.Equal(t, 2, opt.DB)
		assert.Equal(t, 3*time.Second, opt.ReadTimeout)
		assert.Equal(t, "localhost:6379", opt.Addr)
	})
}

func TestRedisCartGateway_SilentServer(t *testing.T) {
	ctx := t.Context()
	const bound = 100 * time.Millisecond

	// Arrange
	host, port := silentRedis(t)
	opt, err := repository.RedisOptions(&config.Config{
		RedisConnect: config.RedisConnect{Host: host, Port: port},
		Store:        config.Store{Timeout: 10 * time.Second},
	})
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() {
		client.Close()
	})
	gateway := repository.NewRedisCartGateway(client, bound)

	calls := []struct {
		name string
		call func() error
	}{
		{"Failure - Load Gives Up At Gateway Bound", func() error {
			_, err := gateway.Load(ctx, "user-1")
			return err
		}},
		{"Failure - Save Gives Up At Gateway Bound", func() error {
			return gateway.Save(ctx, testCart("user-1"))
		}},
		{"Failure - Delete Gives Up At Gateway Bound", func() error {
			return gateway.Delete(ctx, "user-1")
		}},
	}

	for _, tc := range calls {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			start := time.Now()
			err := tc.call()
			elapsed := time.Since(start)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
			assert.Less(t, elapsed, 2*time.Second, "client read timeout must not override the gateway bound")
		})
	}
}
