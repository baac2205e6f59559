package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/groupwarden/groupwarden/lockmod/cachestore"
	"github.com/groupwarden/groupwarden/lockmod/command"
	"github.com/groupwarden/groupwarden/lockmod/countstore"
	"github.com/groupwarden/groupwarden/lockmod/event"
	"github.com/groupwarden/groupwarden/lockmod/policystore"
	"github.com/groupwarden/groupwarden/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// members per bulk enforcement batch; calls within a batch run concurrently
	DefaultBatchSize = 15
	// pause between bulk enforcement batches, to stay under platform rate limits
	DefaultBatchPause = 350 * time.Millisecond
	// reactive corrections of unattributed changes per thread per hour before the circuit breaker trips; 0 disables it
	DefaultQuotaCorrectionsHour = 0
	// how long an occurrence id is remembered for dedupe
	DefaultDedupeTTL = 10 * time.Minute
)

// runtime for classifying occurrences, executing administrator commands, and issuing corrective actions.
//
// Client, Policy and Counters must be non-nil. Cache and Notifier are optional. Zero values for the remaining knobs fall back to package defaults.
type Engine struct {
	Logger *slog.Logger
	Client Client
	Policy *policystore.Persister
	// the single member id allowed to issue commands
	AdminID string
	// optional prefix on command verbs, eg "/"
	CommandMarker string
	Retry         RetryPolicy
	BatchSize     int
	BatchPause    time.Duration
	Counters      countstore.CountStore
	// used to drop re-delivered occurrences (optional)
	Cache    cachestore.CacheStore
	Notifier Notifier
	// caps reverts of changes that carry no actor, per thread per hour. Attributed changes are always reverted. 0 disables the circuit breaker
	QuotaCorrectionsHour int
	// hook for tests; defaults to a context-aware time.Sleep
	Sleep func(ctx context.Context, d time.Duration) error
}

// Authority gate: only the configured privileged identity may issue commands.
func (e *Engine) IsAuthorized(actor string) bool {
	return e.AdminID != "" && actor == e.AdminID
}

// Handles a single raw occurrence: classify, then either reconcile locked state or interpret a command.
//
// Each call is an isolated failure boundary; a panic while handling one occurrence is logged and returned as an error, and never affects other occurrences.
func (e *Engine) ProcessOccurrence(ctx context.Context, occ event.Occurrence) (err error) {
	// similar to an HTTP server, we want to recover any panics from event handling
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("occurrence handling exception", "err", r, "thread", occ.ThreadID, "type", occ.Type, "subType", occ.SubType)
			eventErrorCount.WithLabelValues("panic").Inc()
			err = fmt.Errorf("recovered from panic handling occurrence: %v", r)
		}
	}()

	evt := event.Classify(occ)
	if evt.Kind == event.Unrecognized {
		return nil
	}
	// unauthorized senders are dropped before any side effect: no dedupe entry, no metrics, no reply
	if evt.Kind == event.MessageReceived && !e.IsAuthorized(evt.Sender) {
		return nil
	}
	kind := evt.Kind.String()

	ctx, span := tracer.Start(ctx, "ProcessOccurrence", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("thread", evt.Thread),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if e.isDuplicate(ctx, evt.Thread, occ.ID) {
		eventDuplicateCount.Inc()
		return nil
	}
	eventProcessCount.WithLabelValues(kind).Inc()

	logger := e.Logger.With("thread", evt.Thread, "kind", kind)
	if evt.Kind == event.MessageReceived {
		err = e.handleMessage(ctx, logger, evt)
	} else {
		e.Reconcile(ctx, logger, evt)
	}
	if err != nil {
		eventErrorCount.WithLabelValues(kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e *Engine) handleMessage(ctx context.Context, logger *slog.Logger, evt event.GroupEvent) error {
	cmd, ok := command.Parse(evt.Text, e.CommandMarker)
	if !ok {
		return nil
	}
	commandCount.WithLabelValues(cmd.Verb.String()).Inc()
	logger.Info("executing command", "verb", cmd.Verb.String(), "args", len(cmd.Args))
	return e.ExecuteCommand(ctx, logger, evt.Thread, evt.Sender, cmd)
}

// Returns true if this occurrence id was already handled recently; otherwise remembers it. Occurrences without an id are never considered duplicates, and cache errors fail open.
func (e *Engine) isDuplicate(ctx context.Context, thread, id string) bool {
	if e.Cache == nil || id == "" {
		return false
	}
	seen, err := e.Cache.Remember(ctx, cachestore.OccurrenceKey{Thread: thread, ID: id})
	if err != nil {
		e.Logger.Warn("occurrence dedupe failed", "err", err, "thread", thread, "id", id)
		return false
	}
	return seen
}

// Persists the policy store after a mutation. Failures are logged by the persister and retried on the next mutation or periodic flush.
func (e *Engine) savePolicy(ctx context.Context) {
	_ = e.Policy.Save(ctx)
}

func (e *Engine) store() *policystore.Store {
	return e.Policy.Store
}

func (e *Engine) batchSize() int {
	if e.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return e.BatchSize
}

func (e *Engine) batchPause() time.Duration {
	if e.BatchPause <= 0 {
		return DefaultBatchPause
	}
	return e.BatchPause
}

func (e *Engine) retryPolicy() RetryPolicy {
	if e.Retry.MaxAttempts <= 0 {
		return DefaultRetryPolicy
	}
	return e.Retry
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	return util.SleepContext(ctx, d)
}
