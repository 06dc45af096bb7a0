package status

import (
	"context"
	"sync"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/projectcontour/contour-sub001/internal/metrics"
	"github.com/projectcontour/contour-sub001/internal/resource"
)

//go:generate mockgen -source ./updater.go -destination ./mocks/updater.go -package mocks

// Sink receives status records. Upsert must be idempotent and safe to
// call redundantly; the compiler never deletes a record itself.
type Sink interface {
	Upsert(ctx context.Context, update Update) error
}

// UpdaterConfig holds the dependencies and tuning for an Updater.
type UpdaterConfig struct {
	Logger hclog.Logger
	Sink   Sink
	// WritesPerSecond caps the sink write rate. Zero or less leaves the
	// rate uncapped.
	WritesPerSecond float64
}

// Updater decouples builds from status writes. Builds enqueue record
// batches and return immediately; a single Run loop drains the queue,
// skips records identical to the last successful write, rate limits the
// rest, and retries transient sink failures with backoff. A record
// re-enqueued while an older write is still queued replaces it, so the
// sink only ever sees the newest state.
type Updater struct {
	logger  hclog.Logger
	sink    Sink
	limiter *rate.Limiter

	mutex   sync.Mutex
	pending map[resource.Key]Update
	written map[resource.Key]Record

	wake chan struct{}
}

func NewUpdater(config UpdaterConfig) *Updater {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	limit := rate.Inf
	if config.WritesPerSecond > 0 {
		limit = rate.Limit(config.WritesPerSecond)
	}
	return &Updater{
		logger:  logger.Named("status-updater"),
		sink:    config.Sink,
		limiter: rate.NewLimiter(limit, 1),
		pending: make(map[resource.Key]Update),
		written: make(map[resource.Key]Record),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue records the outcome of one build. It never blocks the caller.
func (u *Updater) Enqueue(updates []Update) {
	u.mutex.Lock()
	queued := 0
	for _, update := range updates {
		if written, found := u.written[update.Key]; found && written.Equal(update.Record) {
			// drop writes changing nothing; also clear a queued update
			// that the newer build made redundant
			delete(u.pending, update.Key)
			continue
		}
		u.pending[update.Key] = update
		queued++
	}
	u.mutex.Unlock()

	if queued > 0 {
		select {
		case u.wake <- struct{}{}:
		default:
		}
	}
}

// Run drains queued writes until ctx is canceled.
func (u *Updater) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-u.wake:
		}

		for {
			update, found := u.next()
			if !found {
				break
			}
			if err := u.limiter.Wait(ctx); err != nil {
				return nil
			}
			u.write(ctx, update)
		}
	}
}

// next pops the pending update with the smallest key so writes land in a
// deterministic order.
func (u *Updater) next() (Update, bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	var smallest resource.Key
	found := false
	for key := range u.pending {
		if !found || key.String() < smallest.String() {
			smallest = key
			found = true
		}
	}
	if !found {
		return Update{}, false
	}
	update := u.pending[smallest]
	delete(u.pending, smallest)
	return update, true
}

func (u *Updater) write(ctx context.Context, update Update) {
	defer gometrics.MeasureSince(metrics.StatusWriteKey, time.Now())

	err := backoff.Retry(func() error {
		return u.sink.Upsert(ctx, update)
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(1*time.Second), 30), ctx))
	if err != nil {
		metrics.Registry.Status.WriteFailures.Inc()
		u.logger.Error("error writing document status", "key", update.Key.String(), "error", err)
		return
	}

	metrics.Registry.Status.Writes.Inc()
	u.logger.Debug("wrote document status", "key", update.Key.String(), "verdict", update.Record.Verdict)

	u.mutex.Lock()
	u.written[update.Key] = update.Record
	u.mutex.Unlock()
}
