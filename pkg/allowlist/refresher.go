package allowlist

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/metrics"
)

const (
	DefaultRefreshInterval = 60 * time.Second
	MinRefreshInterval     = time.Second
)

// Fetcher retrieves the current allowlist from the admin service.
type Fetcher interface {
	FetchAllowedIPAddresses(ctx context.Context) (map[string][]string, error)
}

// Health is the outcome of the most recent refresh.
type Health int32

const (
	HealthUnknown Health = iota
	HealthUp
	HealthDown
)

func (h Health) String() string {
	switch h {
	case HealthUp:
		return "UP"
	case HealthDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// Refresher periodically fetches the allowlist and swaps it into a Store.
// A failed cycle keeps the previous snapshot and is retried on the next tick.
type Refresher struct {
	log      *zap.SugaredLogger
	store    *Store
	fetcher  Fetcher
	interval time.Duration
	health   atomic.Int32

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	initial sync.WaitGroup
}

func NewRefresher(log *zap.SugaredLogger, store *Store, fetcher Fetcher, interval time.Duration) *Refresher {
	if interval < MinRefreshInterval {
		interval = MinRefreshInterval
	}
	return &Refresher{log: log, store: store, fetcher: fetcher, interval: interval}
}

// Health returns the result of the last refresh, HealthUnknown before the
// first one completes.
func (r *Refresher) Health() Health { return Health(r.health.Load()) }

// Refresh runs one cycle: fetch, replace, persist. The fetch is bounded by
// the refresh interval. A persistence error is returned after the new
// snapshot has been activated; health only tracks the fetch.
func (r *Refresher) Refresh(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	clients, err := r.fetcher.FetchAllowedIPAddresses(fetchCtx)
	if err != nil {
		r.health.Store(int32(HealthDown))
		metrics.AllowlistRefresh.WithLabelValues("fetch_error").Inc()
		return err
	}
	r.health.Store(int32(HealthUp))
	snapshot := r.store.Replace(clients)
	metrics.AllowlistClients.Set(float64(snapshot.Len()))

	if err := r.store.Save(ctx); err != nil {
		metrics.AllowlistRefresh.WithLabelValues("persist_error").Inc()
		return err
	}
	metrics.AllowlistRefresh.WithLabelValues("success").Inc()
	return nil
}

// Start runs a first refresh immediately and then schedules one every
// interval. Overlapping runs are skipped. Start is a no-op when the
// refresher is already running.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{log: r.log}
	job := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		if err := r.Refresh(runCtx); err != nil {
			r.log.Errorw("Unable to update the list of allowed IP-address ranges", "error", err)
		}
	}))

	c := cron.New(cron.WithLogger(logger))
	c.Schedule(cron.Every(r.interval), job)
	c.Start()
	r.initial.Add(1)
	go func() {
		defer r.initial.Done()
		job.Run()
	}()

	r.cron = c
	r.cancel = cancel
	r.log.Infow("Allowlist refresher started", "interval", r.interval.String())
}

// Stop cancels a running refresh and waits for it to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return
	}
	r.cancel()
	<-r.cron.Stop().Done()
	r.initial.Wait()
	r.cron = nil
	r.log.Info("Allowlist refresher stopped")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.With("error", err).Errorw(msg, keysAndValues...)
}
