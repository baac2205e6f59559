package event

import (
	"fmt"
)

// Type tags understood by the classifier. Both the bridge's short names and the upstream platform's log-message names are accepted.
const (
	TagEvent          = "event"
	TagRename         = "rename"
	TagNicknameChange = "nickname-change"
	TagIconChange     = "icon-change"
	TagMemberRemoved  = "member-removed"
	TagMessage        = "message"

	tagLogThreadName  = "log:thread-name"
	tagLogNickname    = "log:user-nickname"
	tagLogThreadIcon  = "log:thread-icon"
	tagLogUnsubscribe = "log:unsubscribe"
	tagMessageReply   = "message_reply"
)

// Maps a raw occurrence to a domain event. Never panics: unmapped tags, and occurrences missing required payload fields, become Unrecognized.
func Classify(occ Occurrence) GroupEvent {
	unrecognized := GroupEvent{Kind: Unrecognized, Thread: occ.ThreadID, Actor: occ.Actor}
	if occ.ThreadID == "" {
		return unrecognized
	}

	tag := occ.Type
	if tag == TagEvent {
		tag = occ.SubType
	}

	evt := GroupEvent{Thread: occ.ThreadID, Actor: occ.Actor}
	switch tag {
	case TagRename, tagLogThreadName:
		name, ok := dataString(occ.Data, "name", "threadName")
		if !ok {
			return unrecognized
		}
		evt.Kind = ThreadRenamed
		evt.NewName = name
	case TagNicknameChange, tagLogNickname:
		member, ok := dataString(occ.Data, "member", "participant_id")
		if !ok || member == "" {
			return unrecognized
		}
		// a missing nickname field means the nickname was cleared
		nick, _ := dataString(occ.Data, "nickname")
		evt.Kind = NicknameChanged
		evt.Member = member
		evt.NewNick = nick
	case TagIconChange, tagLogThreadIcon:
		icon, ok := dataString(occ.Data, "icon", "thread_icon")
		if !ok {
			return unrecognized
		}
		evt.Kind = EmojiChanged
		evt.NewIcon = icon
	case TagMemberRemoved, tagLogUnsubscribe:
		member, ok := dataString(occ.Data, "member", "leftParticipantFbId")
		if !ok || member == "" {
			return unrecognized
		}
		evt.Kind = MemberRemoved
		evt.Member = member
	case TagMessage, tagMessageReply:
		if occ.Actor == "" {
			return unrecognized
		}
		evt.Kind = MessageReceived
		evt.Sender = occ.Actor
		evt.Text = occ.Body
	default:
		return unrecognized
	}
	return evt
}

// Returns the first of the named keys present in data. Numeric ids (common for member ids in JSON payloads) are formatted as decimal strings.
func dataString(data map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			return val, true
		case float64:
			if val == float64(int64(val)) {
				return fmt.Sprintf("%d", int64(val)), true
			}
			return "", false
		case int64:
			return fmt.Sprintf("%d", val), true
		case int:
			return fmt.Sprintf("%d", val), true
		default:
			return "", false
		}
	}
	return "", false
}
