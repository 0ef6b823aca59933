package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vadimbarashkov/shortlinks/internal/entity"
	redisconn "github.com/vadimbarashkov/shortlinks/pkg/redis"
)

func setupRedis(t testing.TB) string {
	t.Helper()

	ctx := context.Background()

	redisCont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisCont.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := redisCont.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisCont.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("%s:%d", host, port.Int())
}

func setupRedisLinkRepository(t testing.TB) (*LinkRepository, *redis.Client) {
	t.Helper()

	client, err := redisconn.New(context.Background(), setupRedis(t))
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	return NewLinkRepository(client), client
}

func TestLinkRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()
	repo, client := setupRedisLinkRepository(t)

	flush := func(t *testing.T) {
		t.Helper()
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("Failed to flush redis: %v", err)
		}
	}

	t.Run("uniqueness", func(t *testing.T) {
		flush(t)

		_, err := repo.Save(ctx, uuid.New(), "abc1234", "https://example.com")
		require.NoError(t, err)

		_, err = repo.Save(ctx, uuid.New(), "abc1234", "https://other.example.com")
		assert.ErrorIs(t, err, entity.ErrShortCodeExists)

		_, err = repo.Save(ctx, uuid.New(), "xyz9876", "https://example.com")
		assert.ErrorIs(t, err, entity.ErrOriginalURLExists)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		flush(t)

		_, err := repo.Save(ctx, uuid.New(), "abc1234", "https://example.com")
		require.NoError(t, err)

		const n = 50

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.IncrementClicks(ctx, "abc1234")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		link, err := repo.FindByShortCode(ctx, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, int64(n), link.Clicks)
	})

	t.Run("same timestamp ordered by code descending", func(t *testing.T) {
		flush(t)

		createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		fixed := NewLinkRepository(client, WithClock(func() time.Time {
			return createdAt
		}))

		for _, code := range []string{"bbbbbbb", "ccccccc", "aaaaaaa"} {
			_, err := fixed.Save(ctx, uuid.New(), code, "https://example.com/"+code)
			require.NoError(t, err)
		}

		links, err := fixed.List(ctx)
		require.NoError(t, err)
		require.Len(t, links, 3)
		assert.Equal(t, "ccccccc", links[0].ShortCode)
		assert.Equal(t, "bbbbbbb", links[1].ShortCode)
		assert.Equal(t, "aaaaaaa", links[2].ShortCode)
	})

	t.Run("remove", func(t *testing.T) {
		flush(t)

		saved, err := repo.Save(ctx, uuid.New(), "abc1234", "https://example.com")
		require.NoError(t, err)

		removed, err := repo.Remove(ctx, saved.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = repo.FindByOriginalURL(ctx, "https://example.com")
		assert.ErrorIs(t, err, entity.ErrLinkNotFound)

		links, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, links)
	})
}
