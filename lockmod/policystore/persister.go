package policystore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var DefaultFlushInterval = 60 * time.Second

var snapshotSaveCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_policy_snapshot_saves",
	Help: "Number of policy snapshot writes, by outcome",
}, []string{"status"})

// Couples a Store with the Sink it is persisted to.
//
// Saves are best-effort: a failure is logged and counted, and the next mutation or periodic tick tries again.
type Persister struct {
	Store  *Store
	Sink   Sink
	Logger *slog.Logger

	// serializes sink writes, so an older snapshot never lands after a newer one
	saveLk sync.Mutex
}

func NewPersister(store *Store, sink Sink, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		Store:  store,
		Sink:   sink,
		Logger: logger.With("system", "policystore"),
	}
}

// Restores the store from the sink. A missing or corrupt snapshot leaves the store empty and logs a warning; this never fails startup.
func (p *Persister) Load(ctx context.Context) {
	raw, err := p.Sink.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		p.Logger.Warn("no pre-existing policy snapshot, starting with empty locks")
		_ = p.Store.Restore([]byte("{}"))
		return
	}
	if err != nil {
		p.Logger.Warn("failed to read policy snapshot, starting with empty locks", "err", err)
		_ = p.Store.Restore([]byte("{}"))
		return
	}
	if err := p.Store.Restore(raw); err != nil {
		p.Logger.Warn("corrupt policy snapshot, starting with empty locks", "err", err)
		return
	}
	p.Logger.Info("loaded policy snapshot", "threads", len(p.Store.Threads()))
}

// Serializes and writes the current store contents.
func (p *Persister) Save(ctx context.Context) error {
	p.saveLk.Lock()
	defer p.saveLk.Unlock()

	raw, err := p.Store.Snapshot()
	if err != nil {
		snapshotSaveCount.WithLabelValues("error").Inc()
		p.Logger.Error("failed to serialize policy snapshot", "err", err)
		return err
	}
	if err := p.Sink.Save(ctx, raw); err != nil {
		snapshotSaveCount.WithLabelValues("error").Inc()
		p.Logger.Error("failed to persist policy snapshot", "err", err)
		return err
	}
	snapshotSaveCount.WithLabelValues("ok").Inc()
	return nil
}

// this method runs in a loop, persisting the policy store every interval, and once more when the context is cancelled
func (p *Persister) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("persisting final policy snapshot")
			// the parent context is already done; give the final write its own deadline
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = p.Save(finalCtx)
			cancel()
			return nil
		case <-ticker.C:
			_ = p.Save(ctx)
		}
	}
}
