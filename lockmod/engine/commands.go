package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/groupwarden/groupwarden/lockmod/command"
	"github.com/groupwarden/groupwarden/lockmod/countstore"
)

// Applies an already-authorized command to the given thread: mutate policy, persist, enforce, and reply.
//
// Missing or malformed arguments produce a usage-hint reply rather than an error.
func (e *Engine) ExecuteCommand(ctx context.Context, logger *slog.Logger, thread, sender string, cmd command.Command) error {
	switch cmd.Verb {
	case command.VerbGroupName:
		return e.cmdGroupName(ctx, logger, thread, cmd)
	case command.VerbNicknames:
		return e.cmdNicknames(ctx, logger, thread, cmd)
	case command.VerbNickname:
		return e.cmdNickname(ctx, logger, thread, cmd)
	case command.VerbEmoji:
		return e.cmdEmoji(ctx, logger, thread, cmd)
	case command.VerbAntiOut:
		return e.cmdAntiOut(ctx, logger, thread, cmd)
	case command.VerbAddUser:
		return e.cmdAddUser(ctx, logger, thread, cmd)
	case command.VerbUID:
		return e.reply(ctx, logger, thread, fmt.Sprintf("UID: %s\nThread: %s", sender, thread))
	case command.VerbGroupInfo:
		return e.cmdGroupInfo(ctx, logger, thread)
	case command.VerbTarget:
		return e.cmdTarget(ctx, logger, thread, cmd)
	case command.VerbHelp:
		return e.reply(ctx, logger, thread, command.HelpText(e.CommandMarker))
	default:
		return fmt.Errorf("unhandled command verb: %d", cmd.Verb)
	}
}

func (e *Engine) usage(ctx context.Context, logger *slog.Logger, thread string, v command.Verb) error {
	return e.reply(ctx, logger, thread, "Usage: "+command.Usage(v, e.CommandMarker))
}

// Replies are sent once, without retries; a failed reply is logged and otherwise ignored.
func (e *Engine) reply(ctx context.Context, logger *slog.Logger, thread, text string) error {
	if err := e.Client.SendText(ctx, thread, text); err != nil {
		logger.Warn("failed to send reply", "err", err)
	}
	return nil
}

func (e *Engine) cmdGroupName(ctx context.Context, logger *slog.Logger, thread string, cmd command.Command) error {
	switch cmd.Action() {
	case "on":
		name := cmd.Rest(1)
		if name == "" {
			return e.usage(ctx, logger, thread, cmd.Verb)
		}
		e.store().SetGroupName(thread, name)
		e.savePolicy(ctx)
		_ = e.Enforce(ctx, Correction{Action: ActionRename, Thread: thread, Value: name})
		return e.reply(ctx, logger, thread, fmt.Sprintf("🔒 Group name locked to %q", name))
	case "off":
		e.store().ClearGroupName(thread)
		e.savePolicy(ctx)
		return e.reply(ctx, logger, thread, "🔓 Group name unlocked")
	default:
		return e.usage(ctx, logger, thread, cmd.Verb)
	}
}

func (e *Engine) cmdNicknames(ctx context.Context, logger *slog.Logger, thread string, cmd command.Command) error {
	switch cmd.Action() {
	case "on":
		nick := cmd.Rest(1)
		if nick == "" {
			return e.usage(ctx, logger, thread, cmd.Verb)
		}
		members, err := e.fetchMembers(ctx, logger, thread)
		if err != nil {
			_ = e.reply(ctx, logger, thread, "⚠️ Could not fetch group members, nicknames not locked")
			return fmt.Errorf("fetching members: %w", err)
		}
		e.store().SetNicknames(thread, members, nick)
		e.savePolicy(ctx)
		nicks := make(map[string]string, len(members))
		for _, m := range members {
			nicks[m] = nick
		}
		e.EnforceNicknames(ctx, thread, nicks)
		return e.reply(ctx, logger, thread, fmt.Sprintf("🔒 Nicknames locked to %q for %d members", nick, len(members)))
	case "off":
		// clear first, so the reverts below are not themselves reverted
		cleared := e.store().ClearNicknames(thread)
		e.savePolicy(ctx)
		reset := make(map[string]string, len(cleared))
		for m := range cleared {
			reset[m] = ""
		}
		e.EnforceNicknames(ctx, thread, reset)
		return e.reply(ctx, logger, thread, fmt.Sprintf("🔓 Nicknames unlocked for %d members", len(cleared)))
	default:
		return e.usage(ctx, logger, thread, cmd.Verb)
	}
}

func (e *Engine) cmdNickname(ctx context.Context, logger *slog.Logger, thread string, cmd command.Command) error {
	member := cmd.Arg(1)
	switch cmd.Action() {
	case "on":
		nick := cmd.Rest(2)
		if member == "" || nick == "" {
			return e.usage(ctx, logger, thread, cmd.Verb)
		}
		e.store().SetNickname(thread, member, nick)
		e.savePolicy(ctx)
		_ = e.Enforce(ctx, Correction{Action: ActionSetNickname, Thread: thread, Member: member, Value: nick})
		return e.reply(ctx, logger, thread, fmt.Sprintf("🔒 Nickname for %s locked to %q", member, nick))
	case "off":
		if member == "" {
			return e.usage(ctx, logger, thread, cmd.Verb)
		}
		e.store().ClearNickname(thread, member)
		e.savePolicy(ctx)
		_ = e.Enforce(ctx, Correction{Action: ActionSetNickname, Thread: thread, Member: member, Value: ""})
		return e.reply(ctx, logger, thread, fmt.Sprintf("🔓 Nickname for %s unlocked", member))
	default:
		return e.usage(ctx, logger, thread, cmd.Verb)
	}
}

func (e *Engine) cmdEmoji(ctx context.Context, logger *slog.Logger, thread string, cmd command.Command) error {
	icon := cmd.Arg(0)
	switch {
	case icon == "":
		return e.usage(ctx, logger, thread, cmd.Verb)
	case strings.ToLower(icon) == "off" && len(cmd.Args) == 1:
		e.store().ClearEmoji(thread)
		e.savePolicy(ctx)
		return e.reply(ctx, logger, thread, "🔓 Emoji unlocked")
	case !command.SingleEmoji(icon) || len(cmd.Args) > 1:
		return e.usage(ctx, logger, thread, cmd.Verb)
	}
	e.store().SetEmoji(thread, icon)
	e.savePolicy(ctx)
	_ = e.Enforce(ctx, Correction{Action: ActionSetIcon, Thread: thread, Value: icon})
	return e.reply(ctx, logger, thread, fmt.Sprintf("🔒 Emoji locked to %s", icon))
}

func (e *Engine) cmdAntiOut(ctx context.Context, logger *slog.Logger, thread string, cmd command.Command) error {
	switch cmd.Action() {
	case "on":
		e.store().SetAntiOut(thread, true)
		e.savePolicy(ctx)
		return e.reply(ctx, logger, thread, "🔒 Anti-out enabled")
	case "off":
		e.store().SetAntiOut(thread, false)
		e.savePolicy(ctx)
		return e.reply(ctx, logger, thread, "🔓 Anti-out disabled")
	default:
		return e.usage(ctx, logger, thread, cmd.Verb)
	}
}

// One-shot; not persisted as a lock.
func (e *Engine) cmdAddUser(ctx context.Context, logger *slog.Logger, thread string, cmd command.Command) error {
	member := cmd.Arg(0)
	if member == "" {
		return e.usage(ctx, logger, thread, cmd.Verb)
	}
	if err := e.Enforce(ctx, Correction{Action: ActionAddMember, Thread: thread, Member: member}); err != nil {
		return e.reply(ctx, logger, thread, fmt.Sprintf("⚠️ Could not add %s", member))
	}
	return e.reply(ctx, logger, thread, fmt.Sprintf("✅ Added %s", member))
}

// The target marker is stored and reported, but no other behavior consumes it yet.
func (e *Engine) cmdTarget(ctx context.Context, logger *slog.Logger, thread string, cmd command.Command) error {
	switch cmd.Action() {
	case "on":
		member := cmd.Arg(1)
		if member == "" {
			return e.usage(ctx, logger, thread, cmd.Verb)
		}
		e.store().SetTarget(thread, member)
		e.savePolicy(ctx)
		return e.reply(ctx, logger, thread, fmt.Sprintf("🎯 Target set to %s", member))
	case "off":
		e.store().ClearTarget(thread)
		e.savePolicy(ctx)
		return e.reply(ctx, logger, thread, "🎯 Target cleared")
	default:
		return e.usage(ctx, logger, thread, cmd.Verb)
	}
}

func (e *Engine) cmdGroupInfo(ctx context.Context, logger *slog.Logger, thread string) error {
	locks := e.store().Locks(thread)
	lines := []string{fmt.Sprintf("Thread: %s", thread)}

	// member count is informational; a failed lookup just omits it
	if members, err := e.Client.FetchMembers(ctx, thread); err != nil {
		logger.Warn("failed to fetch members for group info", "err", err)
	} else {
		lines = append(lines, fmt.Sprintf("Members: %d", len(members)))
	}

	if locks.Empty() {
		lines = append(lines, "No active locks")
	} else {
		lines = append(lines, "Active locks:")
		if locks.GroupName != nil {
			lines = append(lines, fmt.Sprintf("• Group name: %q", *locks.GroupName))
		}
		if len(locks.Nicknames) > 0 {
			lines = append(lines, fmt.Sprintf("• Nicknames: %d members", len(locks.Nicknames)))
			members := make([]string, 0, len(locks.Nicknames))
			for m := range locks.Nicknames {
				members = append(members, m)
			}
			sort.Strings(members)
			// long member lists are summarized by the count above
			if len(members) <= 10 {
				for _, m := range members {
					lines = append(lines, fmt.Sprintf("   %s → %q", m, locks.Nicknames[m]))
				}
			}
		}
		if locks.Emoji != nil {
			lines = append(lines, fmt.Sprintf("• Emoji: %s", *locks.Emoji))
		}
		if locks.AntiOut {
			lines = append(lines, "• Anti-out: on")
		}
		if locks.Target != nil {
			lines = append(lines, fmt.Sprintf("• Target: %s", *locks.Target))
		}
	}

	if e.Counters != nil {
		n, err := e.Counters.GetCount(ctx, "corrections", thread, countstore.PeriodDay)
		if err != nil {
			logger.Warn("failed to read correction counter", "err", err)
		} else {
			lines = append(lines, fmt.Sprintf("Corrections today: %d", n))
		}
	}
	return e.reply(ctx, logger, thread, strings.Join(lines, "\n"))
}

// Member enumeration is an external query, retried like a corrective call.
func (e *Engine) fetchMembers(ctx context.Context, logger *slog.Logger, thread string) ([]string, error) {
	var members []string
	_, err := e.retryPolicy().Do(ctx, e.sleep, func(ctx context.Context, attempt int) error {
		out, err := e.Client.FetchMembers(ctx, thread)
		if err != nil {
			logger.Warn("fetching members failed", "attempt", attempt+1, "err", err)
			return err
		}
		members = out
		return nil
	})
	return members, err
}
