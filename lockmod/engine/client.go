package engine

import (
	"context"
)

// Capability surface of the chat platform, as consumed by the engine. The engine never depends on transport details; see the bridge package for the production implementation and MockClient for tests.
type Client interface {
	RenameThread(ctx context.Context, thread, name string) error
	SetNickname(ctx context.Context, thread, member, nick string) error
	SetIcon(ctx context.Context, thread, icon string) error
	AddMember(ctx context.Context, thread, member string) error
	FetchMembers(ctx context.Context, thread string) ([]string, error)
	SendText(ctx context.Context, thread, text string) error
	// Member id the engine itself acts as
	SelfID() string
}
