package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/groupwarden/groupwarden/lockmod/engine"
	"github.com/groupwarden/groupwarden/lockmod/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

var DefaultParallelism = 16

// Returned by Run when the source stops delivering occurrences.
var ErrSourceClosed = errors.New("occurrence source closed")

var occurrencesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_consumer_occurrences_received",
	Help: "Number of raw occurrences received from the bridge",
})

var occurrencesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "warden_consumer_occurrences_inflight",
	Help: "Number of occurrences currently being handled",
})

// Anything which delivers raw occurrences, such as a bridge connection. The channel is closed when delivery ends.
type Source interface {
	Occurrences() <-chan event.Occurrence
}

// Dispatches occurrences from a Source to the engine, with bounded concurrency.
type Consumer struct {
	Engine      *engine.Engine
	Source      Source
	Parallelism int
	Logger      *slog.Logger

	// lastTimestamp is the platform timestamp (unix millis) of the most recent occurrence we have begun to handle.
	// The value is best-effort, since handling is concurrent; use atomics when reading or updating it.
	lastTimestamp int64
}

// Runs until the context is cancelled or the source closes, then waits for in-flight occurrences to finish.
//
// Handling errors are logged and never stop the loop.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Engine == nil {
		return fmt.Errorf("nil engine")
	}
	if c.Source == nil {
		return fmt.Errorf("nil occurrence source")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	parallelism := c.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	logger.Info("consuming occurrences", "parallelism", parallelism)

	sem := semaphore.NewWeighted(int64(parallelism))
	// waits for every in-flight handler by taking the whole semaphore
	drain := func() {
		_ = sem.Acquire(context.Background(), int64(parallelism))
		sem.Release(int64(parallelism))
	}

	stream := c.Source.Occurrences()
	for {
		select {
		case <-ctx.Done():
			drain()
			return nil
		case occ, ok := <-stream:
			if !ok {
				drain()
				return ErrSourceClosed
			}
			occurrencesReceived.Inc()
			if !occ.Timestamp.IsZero() {
				atomic.StoreInt64(&c.lastTimestamp, occ.Timestamp.UnixMilli())
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				// only fails when ctx is done
				drain()
				return nil
			}
			occurrencesInFlight.Inc()
			go func(occ event.Occurrence) {
				defer sem.Release(1)
				defer occurrencesInFlight.Dec()
				if err := c.Engine.ProcessOccurrence(ctx, occ); err != nil {
					logger.Error("engine failed to process occurrence", "err", err, "thread", occ.ThreadID, "id", occ.ID)
				}
			}(occ)
		}
	}
}

// Platform timestamp of the most recently dispatched occurrence; zero if none carried one.
func (c *Consumer) LastTimestamp() time.Time {
	ms := atomic.LoadInt64(&c.lastTimestamp)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
