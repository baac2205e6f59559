package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groupwarden/groupwarden/lockmod/cachestore"
	"github.com/groupwarden/groupwarden/lockmod/countstore"
	"github.com/groupwarden/groupwarden/lockmod/policystore"
)

// One recorded interaction with MockClient. Pauses taken by the engine are recorded with Method "sleep".
type MockCall struct {
	Method string
	Thread string
	Member string
	Value  string
}

// In-memory Client which records every call, for use in tests.
type MockClient struct {
	Self string
	// thread -> member ids returned by FetchMembers
	Members map[string][]string
	// method -> number of upcoming calls which should fail
	Failures map[string]int
	// artificial latency on corrective calls, to observe concurrency
	CallDelay time.Duration

	lk          sync.Mutex
	calls       []MockCall
	sleeps      []time.Duration
	inFlight    int
	maxInFlight int
}

var _ Client = (*MockClient)(nil)

func NewMockClient(self string) *MockClient {
	return &MockClient{
		Self:     self,
		Members:  make(map[string][]string),
		Failures: make(map[string]int),
	}
}

func (c *MockClient) SelfID() string {
	return c.Self
}

// Fails the next n calls to the given method.
func (c *MockClient) FailNext(method string, n int) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.Failures[method] = n
}

// Records an arbitrary marker in the call log.
func (c *MockClient) Mark(label string) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.calls = append(c.calls, MockCall{Method: "mark", Value: label})
}

func (c *MockClient) Calls() []MockCall {
	c.lk.Lock()
	defer c.lk.Unlock()
	out := make([]MockCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// Recorded calls to a single method, in order.
func (c *MockClient) CallsTo(method string) []MockCall {
	var out []MockCall
	for _, call := range c.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

func (c *MockClient) Sleeps() []time.Duration {
	c.lk.Lock()
	defer c.lk.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Highest number of corrective calls observed in flight at once.
func (c *MockClient) MaxInFlight() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.maxInFlight
}

func (c *MockClient) Reset() {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.calls = nil
	c.sleeps = nil
	c.maxInFlight = 0
}

// Sleep hook for Engine.Sleep: records the pause without waiting.
func (c *MockClient) Sleep(ctx context.Context, d time.Duration) error {
	c.lk.Lock()
	c.sleeps = append(c.sleeps, d)
	c.calls = append(c.calls, MockCall{Method: "sleep", Value: d.String()})
	c.lk.Unlock()
	return ctx.Err()
}

func (c *MockClient) record(ctx context.Context, call MockCall) error {
	c.lk.Lock()
	c.calls = append(c.calls, call)
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	fail := c.Failures[call.Method] > 0
	if fail {
		c.Failures[call.Method]--
	}
	c.lk.Unlock()

	defer func() {
		c.lk.Lock()
		c.inFlight--
		c.lk.Unlock()
	}()
	if c.CallDelay > 0 {
		select {
		case <-time.After(c.CallDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return fmt.Errorf("mock %s failure", call.Method)
	}
	return nil
}

func (c *MockClient) RenameThread(ctx context.Context, thread, name string) error {
	return c.record(ctx, MockCall{Method: "RenameThread", Thread: thread, Value: name})
}

func (c *MockClient) SetNickname(ctx context.Context, thread, member, nick string) error {
	return c.record(ctx, MockCall{Method: "SetNickname", Thread: thread, Member: member, Value: nick})
}

func (c *MockClient) SetIcon(ctx context.Context, thread, icon string) error {
	return c.record(ctx, MockCall{Method: "SetIcon", Thread: thread, Value: icon})
}

func (c *MockClient) AddMember(ctx context.Context, thread, member string) error {
	return c.record(ctx, MockCall{Method: "AddMember", Thread: thread, Member: member})
}

func (c *MockClient) FetchMembers(ctx context.Context, thread string) ([]string, error) {
	if err := c.record(ctx, MockCall{Method: "FetchMembers", Thread: thread}); err != nil {
		return nil, err
	}
	c.lk.Lock()
	defer c.lk.Unlock()
	out := make([]string, len(c.Members[thread]))
	copy(out, c.Members[thread])
	return out, nil
}

func (c *MockClient) SendText(ctx context.Context, thread, text string) error {
	return c.record(ctx, MockCall{Method: "SendText", Thread: thread, Value: text})
}

// Engine wired to in-memory stores and a MockClient. The administrator is "admin" and the engine acts as "bot". Pauses are recorded on the client rather than slept.
func EngineTestFixture() (*Engine, *MockClient) {
	client := NewMockClient("bot")
	policy := policystore.NewPersister(policystore.NewStore(), &policystore.MemSink{}, slog.Default())
	engine := Engine{
		Logger:        slog.Default(),
		Client:        client,
		Policy:        policy,
		AdminID:       "admin",
		CommandMarker: "/",
		Retry:         DefaultRetryPolicy,
		Counters:      countstore.NewMemCountStore(),
		Cache:         cachestore.NewMemCacheStore(100, time.Hour),
		Sleep:         client.Sleep,
	}
	return &engine, client
}
