package bridge

import (
	"encoding/json"

	"github.com/groupwarden/groupwarden/lockmod/event"
)

const (
	kindHello      = "hello"
	kindReady      = "ready"
	kindError      = "error"
	kindRequest    = "request"
	kindResponse   = "response"
	kindOccurrence = "occurrence"
)

// Single websocket message in either direction. Which fields are set depends on Kind.
type frame struct {
	Kind string `json:"kind"`

	// hello / ready
	Session json.RawMessage `json:"session,omitempty"`
	Self    string          `json:"self,omitempty"`

	// request / response
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	OK     bool            `json:"ok,omitempty"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`

	Occurrence *event.Occurrence `json:"occurrence,omitempty"`
}

type threadParams struct {
	ThreadID string `json:"threadId"`
	Name     string `json:"name,omitempty"`
	Member   string `json:"member,omitempty"`
	// pointer so an empty nickname (removal) is still sent
	Nickname *string `json:"nickname,omitempty"`
	Icon     string  `json:"icon,omitempty"`
	Text     string  `json:"text,omitempty"`
}

type membersResult struct {
	Members []string `json:"members"`
}
