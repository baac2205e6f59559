package event

import (
	"time"
)

// Raw platform occurrence, as decoded from the bridge. Shape is loosely typed on purpose: everything past this boundary works on GroupEvent.
type Occurrence struct {
	// Platform-assigned identifier, used to drop re-delivered occurrences. May be empty.
	ID string `json:"id,omitempty"`
	// Type tag, eg "message" or "event"
	Type string `json:"type"`
	// Sub-type tag for generic "event" occurrences, eg "rename"
	SubType   string         `json:"subType,omitempty"`
	ThreadID  string         `json:"threadId"`
	Actor     string         `json:"actor,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

type Kind int

const (
	Unrecognized Kind = iota
	ThreadRenamed
	NicknameChanged
	EmojiChanged
	MemberRemoved
	MessageReceived
)

func (k Kind) String() string {
	switch k {
	case ThreadRenamed:
		return "thread-renamed"
	case NicknameChanged:
		return "nickname-changed"
	case EmojiChanged:
		return "emoji-changed"
	case MemberRemoved:
		return "member-removed"
	case MessageReceived:
		return "message-received"
	default:
		return "unrecognized"
	}
}

// Domain event derived from an Occurrence. Which fields are meaningful depends on Kind:
//
//   - ThreadRenamed: NewName
//   - NicknameChanged: Member, NewNick (may be empty, meaning the nickname was removed)
//   - EmojiChanged: NewIcon
//   - MemberRemoved: Member (who left), Actor (who removed them; may equal Member)
//   - MessageReceived: Sender, Text
//
// Thread and Actor are populated for every recognized kind when the platform supplies them.
type GroupEvent struct {
	Kind   Kind
	Thread string
	Actor  string

	NewName string
	Member  string
	NewNick string
	NewIcon string
	Sender  string
	Text    string
}
