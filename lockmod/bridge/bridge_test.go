package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/groupwarden/groupwarden/lockmod/event"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal stand-in for the platform gateway.
type fakeGateway struct {
	lk       sync.Mutex
	requests []frame
	members  []string
	push     chan event.Occurrence
	conn     *websocket.Conn
}

func (g *fakeGateway) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "warden/"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var hi frame
		if err := conn.ReadJSON(&hi); err != nil {
			return
		}
		if string(hi.Session) != `{"cookie":"abc"}` {
			_ = conn.WriteJSON(frame{Kind: kindError, Error: "session expired"})
			return
		}
		_ = conn.WriteJSON(frame{Kind: kindReady, Self: "bot"})

		var writeLk sync.Mutex
		write := func(f frame) {
			writeLk.Lock()
			defer writeLk.Unlock()
			_ = conn.WriteJSON(f)
		}
		g.lk.Lock()
		g.conn = conn
		g.lk.Unlock()

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			for {
				select {
				case occ := <-g.push:
					write(frame{Kind: kindOccurrence, Occurrence: &occ})
				case <-stop:
					return
				}
			}
		}()

		for {
			var req frame
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			g.lk.Lock()
			g.requests = append(g.requests, req)
			g.lk.Unlock()
			resp := frame{Kind: kindResponse, ID: req.ID, OK: true}
			switch req.Method {
			case "fetchMembers":
				resp.Result, _ = json.Marshal(membersResult{Members: g.members})
			case "setIcon":
				resp.OK = false
				resp.Error = "icon not allowed"
			case "hang":
				continue
			}
			write(resp)
		}
	}
}

func (g *fakeGateway) Requests() []frame {
	g.lk.Lock()
	defer g.lk.Unlock()
	return append([]frame(nil), g.requests...)
}

func (g *fakeGateway) drop() {
	g.lk.Lock()
	defer g.lk.Unlock()
	if g.conn != nil {
		_ = g.conn.Close()
	}
}

func testGateway(t *testing.T) (*fakeGateway, string) {
	g := &fakeGateway{
		members: []string{"u1", "u2"},
		push:    make(chan event.Occurrence, 10),
	}
	srv := httptest.NewServer(g.handler(t))
	t.Cleanup(srv.Close)
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBridgeCalls(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g, host := testGateway(t)
	c, err := Dial(ctx, Config{Host: host, Session: json.RawMessage(`{"cookie":"abc"}`)})
	require.NoError(err)
	defer c.Close()

	assert.Equal("bot", c.SelfID())
	assert.NoError(c.RenameThread(ctx, "t1", "Club"))
	assert.NoError(c.SetNickname(ctx, "t1", "u1", ""))
	assert.NoError(c.AddMember(ctx, "t1", "u2"))
	assert.NoError(c.SendText(ctx, "t1", "hello"))

	members, err := c.FetchMembers(ctx, "t1")
	assert.NoError(err)
	assert.Equal([]string{"u1", "u2"}, members)

	reqs := g.Requests()
	require.Len(reqs, 5)
	assert.Equal("renameThread", reqs[0].Method)
	assert.JSONEq(`{"threadId":"t1","name":"Club"}`, string(reqs[0].Params))
	// an empty nickname is a removal, and still goes on the wire
	assert.JSONEq(`{"threadId":"t1","member":"u1","nickname":""}`, string(reqs[1].Params))
	assert.NotEqual(reqs[0].ID, reqs[1].ID)
}

func TestBridgeRemoteError(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	_, host := testGateway(t)
	c, err := Dial(ctx, Config{Host: host, Session: json.RawMessage(`{"cookie":"abc"}`)})
	require.NoError(err)
	defer c.Close()

	err = c.SetIcon(ctx, "t1", "🔥")
	var remote *RemoteError
	require.True(errors.As(err, &remote))
	assert.Equal("setIcon", remote.Method)
	assert.Equal("icon not allowed", remote.Message)
}

func TestBridgeRequestTimeout(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	_, host := testGateway(t)
	c, err := Dial(ctx, Config{Host: host, Session: json.RawMessage(`{"cookie":"abc"}`), RequestTimeout: 50 * time.Millisecond})
	require.NoError(err)
	defer c.Close()

	err = c.call(ctx, "hang", threadParams{ThreadID: "t1"}, nil)
	assert.ErrorContains(err, "timed out")
}

func TestBridgeSessionRejected(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	_, host := testGateway(t)
	_, err := Dial(ctx, Config{Host: host, Session: json.RawMessage(`{"cookie":"stale"}`)})
	assert.ErrorIs(err, ErrSessionRejected)
	assert.ErrorContains(err, "session expired")
}

func TestBridgeOccurrences(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g, host := testGateway(t)
	c, err := Dial(ctx, Config{Host: host, Session: json.RawMessage(`{"cookie":"abc"}`)})
	require.NoError(err)

	g.push <- event.Occurrence{
		ID:       "mid.1",
		Type:     event.TagEvent,
		SubType:  event.TagRename,
		ThreadID: "t1",
		Actor:    "u1",
		Data:     map[string]any{"name": "Chaos"},
	}
	select {
	case occ := <-c.Occurrences():
		assert.Equal("mid.1", occ.ID)
		evt := event.Classify(occ)
		assert.Equal(event.ThreadRenamed, evt.Kind)
		assert.Equal("Chaos", evt.NewName)
	case <-time.After(2 * time.Second):
		t.Fatal("no occurrence delivered")
	}

	// gateway going away closes the stream and fails later calls
	g.drop()
	select {
	case _, ok := <-c.Occurrences():
		assert.False(ok)
	case <-time.After(2 * time.Second):
		t.Fatal("occurrence stream not closed")
	}
	<-c.Done()
	assert.ErrorIs(c.Err(), ErrBridgeClosed)
	assert.ErrorIs(c.SendText(ctx, "t1", "hi"), ErrBridgeClosed)
}

func TestBridgeRateLimit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	_, host := testGateway(t)
	c, err := Dial(ctx, Config{Host: host, Session: json.RawMessage(`{"cookie":"abc"}`), RateLimit: 20})
	require.NoError(err)
	defer c.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		assert.NoError(c.SendText(ctx, "t1", "x"))
	}
	// burst of one, then 50ms per request
	assert.GreaterOrEqual(time.Since(start), 90*time.Millisecond)
}

func TestBridgeBacklogDoesNotBlockResponses(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g, host := testGateway(t)
	c, err := Dial(ctx, Config{Host: host, Session: json.RawMessage(`{"cookie":"abc"}`), RequestTimeout: 2 * time.Second})
	require.NoError(err)
	defer c.Close()

	// nobody reads Occurrences() while the gateway floods past the channel buffer
	for i := 0; i < 1100; i++ {
		g.push <- event.Occurrence{ID: fmt.Sprintf("mid.%d", i), Type: event.TagMessage, ThreadID: "t1", Actor: "u1", Body: "spam"}
	}
	assert.NoError(c.RenameThread(ctx, "t1", "Club"))
	assert.Len(g.Requests(), 1)

	// everything read is still delivered, in order
	for i := 0; i < 1100; i++ {
		select {
		case occ := <-c.Occurrences():
			require.Equal(fmt.Sprintf("mid.%d", i), occ.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("occurrence %d not delivered", i)
		}
	}
	assert.Equal(int64(0), c.Dropped())
}

func TestBridgeBacklogLimit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g, host := testGateway(t)
	c, err := Dial(ctx, Config{Host: host, Session: json.RawMessage(`{"cookie":"abc"}`), RequestTimeout: 2 * time.Second, MaxBacklog: 5})
	require.NoError(err)
	defer c.Close()

	for i := 0; i < 1100; i++ {
		g.push <- event.Occurrence{ID: fmt.Sprintf("mid.%d", i), Type: event.TagMessage, ThreadID: "t1", Actor: "u1", Body: "spam"}
	}
	assert.NoError(c.SendText(ctx, "t1", "still here"))

	// channel buffer, backlog, and at most one occurrence in hand
	assert.Eventually(func() bool {
		return c.Dropped() >= 1100-1006
	}, 2*time.Second, 10*time.Millisecond)
}
