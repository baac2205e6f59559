package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/groupwarden/groupwarden/lockmod/countstore"

	"golang.org/x/sync/errgroup"
)

type Action string

const (
	ActionRename      Action = "rename"
	ActionSetNickname Action = "set-nickname"
	ActionSetIcon     Action = "set-icon"
	ActionAddMember   Action = "add-member"
)

// A single corrective external call. Member is only meaningful for nickname and add-member actions; Value is unused for add-member.
type Correction struct {
	Action Action
	Thread string
	Member string
	Value  string
}

func (c Correction) String() string {
	switch c.Action {
	case ActionSetNickname:
		return fmt.Sprintf("%s %s/%s=%q", c.Action, c.Thread, c.Member, c.Value)
	case ActionAddMember:
		return fmt.Sprintf("%s %s/%s", c.Action, c.Thread, c.Member)
	default:
		return fmt.Sprintf("%s %s=%q", c.Action, c.Thread, c.Value)
	}
}

func (e *Engine) apply(ctx context.Context, c Correction) error {
	switch c.Action {
	case ActionRename:
		return e.Client.RenameThread(ctx, c.Thread, c.Value)
	case ActionSetNickname:
		return e.Client.SetNickname(ctx, c.Thread, c.Member, c.Value)
	case ActionSetIcon:
		return e.Client.SetIcon(ctx, c.Thread, c.Value)
	case ActionAddMember:
		return e.Client.AddMember(ctx, c.Thread, c.Member)
	default:
		return fmt.Errorf("unhandled correction action: %s", c.Action)
	}
}

// Issues one corrective call under the retry policy. Always issues the call, even if the platform is already in the desired state.
//
// Failed attempts are logged but never raised past this point: the returned error is informational, and callers (including bulk batches) carry on regardless.
func (e *Engine) Enforce(ctx context.Context, c Correction) error {
	logger := e.Logger.With("action", string(c.Action), "thread", c.Thread)
	if c.Member != "" {
		logger = logger.With("member", c.Member)
	}

	attempts, err := e.retryPolicy().Do(ctx, e.sleep, func(ctx context.Context, attempt int) error {
		correctionAttemptCount.WithLabelValues(string(c.Action)).Inc()
		err := e.apply(ctx, c)
		if err != nil {
			logger.Warn("corrective call failed", "attempt", attempt+1, "err", err)
		}
		return err
	})
	if e.Counters != nil {
		if cerr := e.Counters.Increment(ctx, "corrections", c.Thread); cerr != nil {
			logger.Warn("failed to increment correction counter", "err", cerr)
		}
	}
	if err != nil {
		correctionCount.WithLabelValues(string(c.Action), "abandoned").Inc()
		logger.Error("abandoning corrective action", "attempts", attempts, "err", err)
		e.notifyAbandoned(c, attempts, err)
		return err
	}
	correctionCount.WithLabelValues(string(c.Action), "ok").Inc()
	logger.Debug("corrective action applied", "attempts", attempts)
	return nil
}

// Reactive single-item revert. Changes with no attributable actor are subject to the per-thread circuit breaker; a member fighting a lock is always reverted.
func (e *Engine) revert(ctx context.Context, logger *slog.Logger, actor string, c Correction) {
	if actor == "" && e.throttled(ctx, logger, c) {
		return
	}
	logger.Info("reverting unauthorized change", "correction", c.String())
	_ = e.Enforce(ctx, c)
}

// Checks and bumps the hourly reactive-correction counter for the thread. Counter errors fail open.
func (e *Engine) throttled(ctx context.Context, logger *slog.Logger, c Correction) bool {
	if e.QuotaCorrectionsHour <= 0 || e.Counters == nil {
		return false
	}
	n, err := e.Counters.GetCount(ctx, "reactive", c.Thread, countstore.PeriodHour)
	if err != nil {
		logger.Warn("failed to read reactive correction counter", "err", err)
		return false
	}
	if n >= e.QuotaCorrectionsHour {
		correctionThrottledCount.WithLabelValues(string(c.Action)).Inc()
		logger.Warn("reactive correction quota exceeded, skipping", "count", n, "quota", e.QuotaCorrectionsHour, "correction", c.String())
		return true
	}
	if err := e.Counters.Increment(ctx, "reactive", c.Thread); err != nil {
		logger.Warn("failed to increment reactive correction counter", "err", err)
	}
	return false
}

// Bulk enforcement of nickname values across many members of one thread.
//
// Members are partitioned into fixed-size batches. Calls within a batch run concurrently, and the whole batch settles before the next starts; a fixed pause separates batches. Individual failures never abort the run. Returns the number of batches issued.
func (e *Engine) EnforceNicknames(ctx context.Context, thread string, nicks map[string]string) int {
	members := make([]string, 0, len(nicks))
	for m := range nicks {
		members = append(members, m)
	}
	sort.Strings(members)

	size := e.batchSize()
	batches := 0
	start := time.Now()
	for lo := 0; lo < len(members); lo += size {
		if lo > 0 {
			if err := e.sleep(ctx, e.batchPause()); err != nil {
				e.Logger.Warn("bulk enforcement interrupted", "thread", thread, "done", lo, "total", len(members), "err", err)
				return batches
			}
		}
		hi := lo + size
		if hi > len(members) {
			hi = len(members)
		}

		var g errgroup.Group
		for _, member := range members[lo:hi] {
			c := Correction{
				Action: ActionSetNickname,
				Thread: thread,
				Member: member,
				Value:  nicks[member],
			}
			g.Go(func() error {
				_ = e.Enforce(ctx, c)
				return nil
			})
		}
		_ = g.Wait()
		batches++
		bulkBatchCount.Inc()
	}
	e.Logger.Info("bulk nickname enforcement complete", "thread", thread, "members", len(members), "batches", batches, "duration", time.Since(start))
	return batches
}
