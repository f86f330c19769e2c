package reporting

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/agencydesk/agencydesk/internal/shared"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (interface{}, error) {
		loads++
		return map[string]float64{"net": 1200.5}, nil
	}

	key, err := cache.BuildKey(ctx, "reporting", "dashboard", "org-1", "2026-07")
	require.NoError(t, err)

	var first map[string]float64
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, 1200.5, first["net"])
	require.Equal(t, 1, loads)

	var second map[string]float64
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 1200.5, second["net"])
	require.Equal(t, 1, loads)
}

func TestBumpInvalidatesKeys(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "reporting", "global", "org-1", "2026")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "reporting", "global", "org-1", "2026")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestNilClientBypassesCache(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (interface{}, error) {
		loads++
		return map[string]int{"n": loads}, nil
	}

	key, err := cache.BuildKey(ctx, "reporting", "dashboard", "org-1", "2026-07")
	require.NoError(t, err)

	var out map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 2, loads)
	require.Equal(t, 2, out["n"])
}

func TestCachedDashboardSkipsRebuild(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &fakeReportRepo{open: 4000, nonFixed: 600, fixed: 1000}
	now := time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, &fakeSummary{}, NewCache(client, time.Minute), logger, 2500).
		WithClock(func() time.Time { return now })

	_, err := svc.Dashboard(context.Background(), "org-1", shared.Window{})
	require.NoError(t, err)
	_, err = svc.Dashboard(context.Background(), "org-1", shared.Window{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.builds)

	require.NoError(t, svc.InvalidateCache(context.Background()))
	_, err = svc.Dashboard(context.Background(), "org-1", shared.Window{})
	require.NoError(t, err)
	require.Equal(t, 2, repo.builds)
}
