package prices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// countingProvider counts upstream calls
type countingProvider struct {
	historyCalls int
	currentCalls int
	price        decimal.Decimal
}

func (p *countingProvider) GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	p.historyCalls++
	return []models.PricePoint{
		{Price: p.price, Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (p *countingProvider) GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	p.currentCalls++
	return p.price, nil
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestCachedProvider(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := setupRedis(t)
	upstream := &countingProvider{price: decimal.RequireFromString("650.25")}
	cached := NewCachedProvider(upstream, client, time.Minute, zerolog.Nop())
	ctx := context.Background()

	t.Run("History is fetched once per ticker and window", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			points, err := cached.GetPriceHistory(ctx, "asml", 30)
			require.NoError(t, err)
			require.Len(t, points, 1)
			assert.True(t, points[0].Price.Equal(upstream.price))
		}
		assert.Equal(t, 1, upstream.historyCalls)

		_, err := cached.GetPriceHistory(ctx, "ASML", 60)
		require.NoError(t, err)
		assert.Equal(t, 2, upstream.historyCalls)
	})

	t.Run("Current price is cached", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			price, err := cached.GetCurrentPrice(ctx, "ASML")
			require.NoError(t, err)
			assert.True(t, price.Equal(upstream.price))
		}
		assert.Equal(t, 1, upstream.currentCalls)
	})

	t.Run("Invalidate forces a refetch", func(t *testing.T) {
		require.NoError(t, cached.Invalidate(ctx, "asml"))

		_, err := cached.GetPriceHistory(ctx, "ASML", 30)
		require.NoError(t, err)
		_, err = cached.GetCurrentPrice(ctx, "ASML")
		require.NoError(t, err)

		assert.Equal(t, 3, upstream.historyCalls)
		assert.Equal(t, 2, upstream.currentCalls)
	})
}

func TestCachedProvider_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	upstream := &countingProvider{price: decimal.NewFromInt(10)}
	cached := NewCachedProvider(upstream, client, time.Minute, zerolog.Nop())

	points, err := cached.GetPriceHistory(context.Background(), "ASML", 7)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Equal(t, 1, upstream.historyCalls)
}
