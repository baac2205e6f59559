package engine

import (
	"context"
	"log/slog"

	"github.com/groupwarden/groupwarden/lockmod/event"
)

// Compares an observed change against declared policy, and issues a single corrective call when a locked value has drifted.
//
// Occurrences caused by the engine's own identity are ignored, so the engine never reacts to its own corrections.
func (e *Engine) Reconcile(ctx context.Context, logger *slog.Logger, evt event.GroupEvent) {
	self := e.Client.SelfID()
	if self != "" && evt.Actor == self {
		logger.Debug("ignoring self-originated change")
		return
	}
	policy := e.store()

	switch evt.Kind {
	case event.ThreadRenamed:
		want, ok := policy.GroupName(evt.Thread)
		if !ok || evt.NewName == want {
			return
		}
		e.revert(ctx, logger, evt.Actor, Correction{Action: ActionRename, Thread: evt.Thread, Value: want})
	case event.NicknameChanged:
		want, ok := policy.Nickname(evt.Thread, evt.Member)
		if !ok || evt.NewNick == want {
			return
		}
		e.revert(ctx, logger, evt.Actor, Correction{Action: ActionSetNickname, Thread: evt.Thread, Member: evt.Member, Value: want})
	case event.EmojiChanged:
		want, ok := policy.Emoji(evt.Thread)
		if !ok || evt.NewIcon == want {
			return
		}
		e.revert(ctx, logger, evt.Actor, Correction{Action: ActionSetIcon, Thread: evt.Thread, Value: want})
	case event.MemberRemoved:
		if !policy.AntiOut(evt.Thread) || evt.Member == self {
			return
		}
		e.revert(ctx, logger, evt.Actor, Correction{Action: ActionAddMember, Thread: evt.Thread, Member: evt.Member})
	}
}
