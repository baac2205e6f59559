package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/groupwarden/groupwarden/lockmod/engine"
	"github.com/groupwarden/groupwarden/lockmod/event"
	"github.com/groupwarden/groupwarden/util"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"
)

var (
	// Returned from calls made after the gateway connection has gone away.
	ErrBridgeClosed = errors.New("bridge connection closed")
	// The gateway refused the session blob in the hello exchange.
	ErrSessionRejected = errors.New("bridge session rejected")
)

var (
	DefaultRequestTimeout = 30 * time.Second
	// occurrences held in memory when the consumer falls behind, beyond the delivery channel's buffer
	DefaultMaxBacklog = 100_000
)

// Failure reported by the gateway for a single request.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge %s failed: %s", e.Method, e.Message)
}

type Config struct {
	// platform gateway, eg "ws://localhost:8090" or "gateway.example.com"
	Host string
	// opaque platform credential; passed through in the hello frame and never interpreted here
	Session json.RawMessage
	// outbound requests per second; 0 means unlimited
	RateLimit      float64
	RequestTimeout time.Duration
	// occurrences past this many undelivered are dropped; 0 means DefaultMaxBacklog
	MaxBacklog int
	Logger     *slog.Logger
}

// Client speaks the gateway's JSON websocket protocol, and implements engine.Client.
type Client struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration

	conn    *websocket.Conn
	self    string
	limiter *rate.Limiter

	writeLk sync.Mutex

	// request id -> waiting caller
	pending *xsync.Map[string, chan frame]

	nextID      atomic.Uint64
	occurrences chan event.Occurrence

	// occurrences read off the socket but not yet handed to the consumer. The read loop only appends here, so responses are never stuck behind a slow consumer.
	backlogLk     sync.Mutex
	backlog       []event.Occurrence
	backlogSignal chan struct{}
	maxBacklog    int
	dropped       atomic.Int64
	readDone      chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

var _ engine.Client = (*Client)(nil)

// Connects to the gateway and completes the hello exchange. The returned client is already reading; occurrences arrive on Occurrences().
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("system", "bridge")

	u, err := util.WebsocketURL(cfg.Host, "/v1/session")
	if err != nil {
		return nil, fmt.Errorf("invalid bridge host URI: %w", err)
	}

	logger.Info("connecting to platform gateway", "upstream", u)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, http.Header{
		"User-Agent": []string{fmt.Sprintf("warden/%s", versioninfo.Short())},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to gateway failed (dialing): %w", err)
	}

	self, err := hello(ctx, conn, cfg.Session)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	maxBacklog := cfg.MaxBacklog
	if maxBacklog <= 0 {
		maxBacklog = DefaultMaxBacklog
	}

	c := &Client{
		Logger:         logger.With("self", self),
		RequestTimeout: timeout,
		conn:           conn,
		self:           self,
		limiter:        limiter,
		pending:        xsync.NewMap[string, chan frame](),
		occurrences:    make(chan event.Occurrence, 1000),
		backlogSignal:  make(chan struct{}, 1),
		maxBacklog:     maxBacklog,
		readDone:       make(chan struct{}),
		done:           make(chan struct{}),
	}
	go c.readLoop()
	go c.deliverLoop()
	c.Logger.Info("gateway session established")
	return c, nil
}

func hello(ctx context.Context, conn *websocket.Conn, session json.RawMessage) (string, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		_ = conn.SetWriteDeadline(dl)
		defer func() {
			_ = conn.SetReadDeadline(time.Time{})
			_ = conn.SetWriteDeadline(time.Time{})
		}()
	}
	if err := conn.WriteJSON(frame{Kind: kindHello, Session: session}); err != nil {
		return "", fmt.Errorf("sending hello: %w", err)
	}
	var resp frame
	if err := conn.ReadJSON(&resp); err != nil {
		return "", fmt.Errorf("reading hello response: %w", err)
	}
	switch resp.Kind {
	case kindReady:
		if resp.Self == "" {
			return "", fmt.Errorf("%w: gateway did not report own identity", ErrSessionRejected)
		}
		return resp.Self, nil
	case kindError:
		return "", fmt.Errorf("%w: %s", ErrSessionRejected, resp.Error)
	default:
		return "", fmt.Errorf("unexpected hello response frame: %q", resp.Kind)
	}
}

func (c *Client) SelfID() string {
	return c.self
}

// Channel of raw occurrences pushed by the gateway. Closed when the connection ends.
func (c *Client) Occurrences() <-chan event.Occurrence {
	return c.occurrences
}

// Closed when the connection ends, for any reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Number of occurrences dropped because the undelivered backlog was full, or the connection ended before they were delivered.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Reason the connection ended; nil while it is still up, or after a clean Close.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer close(c.readDone)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
			default:
				c.Logger.Error("gateway connection lost", "err", err)
				c.shutdown(fmt.Errorf("%w: %w", ErrBridgeClosed, err))
			}
			return
		}
		switch f.Kind {
		case kindOccurrence:
			if f.Occurrence == nil {
				c.Logger.Warn("occurrence frame without payload")
				continue
			}
			c.enqueue(*f.Occurrence)
		case kindResponse:
			ch, ok := c.pending.LoadAndDelete(f.ID)
			if !ok {
				c.Logger.Warn("response for unknown request", "id", f.ID)
				continue
			}
			ch <- f
		case kindError:
			c.Logger.Error("gateway reported session error", "err", f.Error)
		default:
			c.Logger.Debug("ignoring unknown frame kind", "kind", f.Kind)
		}
	}
}

// Never blocks.
func (c *Client) enqueue(occ event.Occurrence) {
	c.backlogLk.Lock()
	if len(c.backlog) >= c.maxBacklog {
		c.backlogLk.Unlock()
		c.dropped.Add(1)
		occurrencesDropped.Inc()
		c.Logger.Warn("occurrence backlog full, dropping", "id", occ.ID, "thread", occ.ThreadID, "backlog", c.maxBacklog)
		return
	}
	c.backlog = append(c.backlog, occ)
	occurrenceBacklog.Inc()
	c.backlogLk.Unlock()

	select {
	case c.backlogSignal <- struct{}{}:
	default:
	}
}

func (c *Client) dequeue() (event.Occurrence, bool) {
	c.backlogLk.Lock()
	defer c.backlogLk.Unlock()
	if len(c.backlog) == 0 {
		return event.Occurrence{}, false
	}
	occ := c.backlog[0]
	c.backlog[0] = event.Occurrence{}
	c.backlog = c.backlog[1:]
	occurrenceBacklog.Dec()
	return occ, true
}

// Hands backlogged occurrences to the consumer in arrival order. Closes Occurrences() once the read loop has ended and everything read was handed over, or the connection is gone.
func (c *Client) deliverLoop() {
	defer close(c.occurrences)
	for {
		occ, ok := c.dequeue()
		if !ok {
			select {
			case <-c.backlogSignal:
				continue
			case <-c.readDone:
				// the read loop may have appended between dequeue and its exit
				if occ, ok = c.dequeue(); !ok {
					return
				}
			}
		}
		select {
		case c.occurrences <- occ:
		case <-c.done:
			c.discardBacklog(1)
			return
		}
	}
}

func (c *Client) discardBacklog(extra int) {
	c.backlogLk.Lock()
	n := len(c.backlog) + extra
	occurrenceBacklog.Sub(float64(len(c.backlog)))
	c.backlog = nil
	c.backlogLk.Unlock()
	if n > 0 {
		c.dropped.Add(int64(n))
		occurrencesDropped.Add(float64(n))
		c.Logger.Warn("connection ended with undelivered occurrences", "count", n)
	}
}

// Sends one request and waits for its response. result may be nil.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	select {
	case <-c.done:
		return ErrBridgeClosed
	default:
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan frame, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	c.writeLk.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.RequestTimeout))
	err = c.conn.WriteJSON(frame{Kind: kindRequest, ID: id, Method: method, Params: raw})
	c.writeLk.Unlock()
	if err != nil {
		return fmt.Errorf("sending %s request: %w", method, err)
	}

	timer := time.NewTimer(c.RequestTimeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if !resp.OK {
			return &RemoteError{Method: method, Message: resp.Error}
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s request timed out after %s", method, c.RequestTimeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrBridgeClosed
	}
}

func (c *Client) RenameThread(ctx context.Context, thread, name string) error {
	return c.call(ctx, "renameThread", threadParams{ThreadID: thread, Name: name}, nil)
}

func (c *Client) SetNickname(ctx context.Context, thread, member, nick string) error {
	return c.call(ctx, "setNickname", threadParams{ThreadID: thread, Member: member, Nickname: &nick}, nil)
}

func (c *Client) SetIcon(ctx context.Context, thread, icon string) error {
	return c.call(ctx, "setIcon", threadParams{ThreadID: thread, Icon: icon}, nil)
}

func (c *Client) AddMember(ctx context.Context, thread, member string) error {
	return c.call(ctx, "addMember", threadParams{ThreadID: thread, Member: member}, nil)
}

func (c *Client) FetchMembers(ctx context.Context, thread string) ([]string, error) {
	var out membersResult
	if err := c.call(ctx, "fetchMembers", threadParams{ThreadID: thread}, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

func (c *Client) SendText(ctx context.Context, thread, text string) error {
	return c.call(ctx, "sendText", threadParams{ThreadID: thread, Text: text}, nil)
}
