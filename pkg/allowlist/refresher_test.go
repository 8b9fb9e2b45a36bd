package allowlist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/metrics"
)

type fakeFetcher struct {
	mu      sync.Mutex
	clients map[string][]string
	err     error
	calls   int
}

func (f *fakeFetcher) FetchAllowedIPAddresses(context.Context) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.clients, f.err
}

func (f *fakeFetcher) set(clients map[string][]string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients, f.err = clients, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRefresher(t *testing.T, fetcher Fetcher) (*Refresher, *Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "allowlist.json")
	store := NewStore(zap.NewNop().Sugar(), path)
	require.NoError(t, store.Initialize(context.Background()))
	return NewRefresher(zap.NewNop().Sugar(), store, fetcher, time.Second), store, path
}

func TestRefreshSuccessReplacesAndPersists(t *testing.T) {
	fetcher := &fakeFetcher{clients: map[string][]string{"client-a": {"192.0.2.0/24"}}}
	r, store, path := newTestRefresher(t, fetcher)
	require.Equal(t, HealthUnknown, r.Health())
	before := testutil.ToFloat64(metrics.AllowlistRefresh.WithLabelValues("success"))

	require.NoError(t, r.Refresh(context.Background()))

	assert.Equal(t, HealthUp, r.Health())
	assert.True(t, store.IsAllowed("client-a", "192.0.2.1"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"client-a":["192.0.2.0/24"]}`, string(data))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AllowlistRefresh.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AllowlistClients))
}

func TestRefreshIsIdempotentForIdenticalContent(t *testing.T) {
	fetcher := &fakeFetcher{clients: map[string][]string{"b": {"2001:db8::/32"}, "a": {"192.0.2.1"}}}
	r, store, path := newTestRefresher(t, fetcher)

	require.NoError(t, r.Refresh(context.Background()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	firstSnapshot := store.Snapshot()

	require.NoError(t, r.Refresh(context.Background()))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, firstSnapshot, store.Snapshot())
	assert.Equal(t, firstSnapshot.Clients(), store.Snapshot().Clients())
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{clients: map[string][]string{"client-a": {"192.0.2.1"}}}
	r, store, path := newTestRefresher(t, fetcher)
	require.NoError(t, r.Refresh(context.Background()))

	fetchErr := errors.New("connection refused")
	fetcher.set(nil, fetchErr)
	err := r.Refresh(context.Background())

	require.ErrorIs(t, err, fetchErr)
	assert.Equal(t, HealthDown, r.Health())
	assert.True(t, store.IsAllowed("client-a", "192.0.2.1"))
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.JSONEq(t, `{"client-a":["192.0.2.1"]}`, string(data))

	fetcher.set(map[string][]string{}, nil)
	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, HealthUp, r.Health())
	assert.False(t, store.IsAllowed("client-a", "192.0.2.1"))
}

func TestRefreshPersistFailureStillActivatesSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(zap.NewNop().Sugar(), filepath.Join(dir, "gone", "allowlist.json"))
	fetcher := &fakeFetcher{clients: map[string][]string{"client-a": {"192.0.2.1"}}}
	r := NewRefresher(zap.NewNop().Sugar(), store, fetcher, time.Second)

	err := r.Refresh(context.Background())

	require.Error(t, err)
	assert.Equal(t, HealthUp, r.Health())
	assert.True(t, store.IsAllowed("client-a", "192.0.2.1"))
}

func TestRefresherStartRunsImmediately(t *testing.T) {
	fetcher := &fakeFetcher{clients: map[string][]string{"client-a": {"192.0.2.1"}}}
	r, store, _ := newTestRefresher(t, fetcher)

	r.Start(context.Background())
	t.Cleanup(r.Stop)

	require.Eventually(t, func() bool { return r.Health() == HealthUp }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, store.IsAllowed("client-a", "192.0.2.1"))
	assert.GreaterOrEqual(t, fetcher.callCount(), 1)
}

func TestRefresherStopIsIdempotent(t *testing.T) {
	r, _, _ := newTestRefresher(t, &fakeFetcher{})
	r.Stop()
	r.Start(context.Background())
	r.Stop()
	r.Stop()
}

func TestNewRefresherClampsInterval(t *testing.T) {
	r := NewRefresher(zap.NewNop().Sugar(), NewStore(zap.NewNop().Sugar(), "unused"), &fakeFetcher{}, 10*time.Millisecond)
	assert.Equal(t, MinRefreshInterval, r.interval)
}

func TestHealthString(t *testing.T) {
	assert.Equal(t, "UNKNOWN", HealthUnknown.String())
	assert.Equal(t, "UP", HealthUp.String())
	assert.Equal(t, "DOWN", HealthDown.String())
}
