package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	appErrors "github.com/noah-isme/lesson-package-api/pkg/errors"
)

type cacheRepoStub struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
	failDel bool
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failDel {
		return errors.New("redis down")
	}
	for _, key := range keys {
		delete(c.entries, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)
	require.NoError(t, svc.Set(context.Background(), "k", "v", 0))
	hit, err := svc.Get(context.Background(), "k", new(string))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.entries)
}

func TestCacheServiceInvalidateSwallowsErrors(t *testing.T) {
	repo := newCacheRepoStub()
	repo.failDel = true
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc.Invalidate(context.Background(), "a", "b")
	assert.Empty(t, repo.deleted)
}

func TestStudentListingIsCachedAndInvalidated(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, h.metrics, time.Minute, zap.NewNop(), true)
	h.packages.cache = cache
	h.lessons.cache = cache
	ctx := context.Background()

	detail, err := h.packages.Create(ctx, createRequest("2024-01-08", "stu-1"), false)
	require.NoError(t, err)

	_, cached, err := h.packages.ListByStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.False(t, cached)

	items, cached, err := h.packages.ListByStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.True(t, cached)
	require.Len(t, items, 1)
	assert.True(t, items[0].RemainingHours.Equal(dec("10")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.cacheHits))

	_, err = h.lessons.Create(ctx, packageLesson(detail.ID, "2024-01-11", "2"))
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "packages:student:stu-1")

	items, cached, err = h.packages.ListByStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.True(t, items[0].RemainingHours.Equal(dec("8")))

	_, err = h.packages.Update(ctx, detail.ID, dto.UpdatePackageRequest{StudentIDs: []string{"stu-2"}}, false)
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "packages:student:stu-2")
}
