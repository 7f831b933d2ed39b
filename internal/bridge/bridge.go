// Package bridge is the correlated transport to a running editor engine:
// one persistent websocket over which commands are matched to responses by
// correlation id, push events are cached as last-write-wins snapshots, and
// link loss triggers supervised reconnection with bounded backoff.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the connection lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Defaults for the product constants. They are constructor parameters, not
// protocol requirements.
const (
	DefaultCommandTimeout = 30 * time.Second
	DefaultReconnectBase  = 1 * time.Second
	DefaultReconnectMax   = 30 * time.Second

	controlWriteWait = 5 * time.Second
)

// Options configures a Bridge.
type Options struct {
	// URL is the engine websocket endpoint.
	URL string

	// AuthToken is the bearer credential for the handshake. Empty means an
	// unauthenticated development connection; every connect attempt logs a
	// warning so the mode is never silent.
	AuthToken string

	// Headers are extra handshake headers.
	Headers http.Header

	CommandTimeout time.Duration
	ReconnectBase  time.Duration
	ReconnectMax   time.Duration

	// Dial overrides the websocket dialer, mainly for tests.
	Dial DialFunc

	Logger zerolog.Logger
}

type callResult struct {
	payload json.RawMessage
	err     error
}

type pendingCall struct {
	ch    chan callResult
	timer *time.Timer
}

// Bridge owns the single engine link and the pending request registry.
// Construct one per process and pass it by handle; there is no package
// singleton.
type Bridge struct {
	url     string
	token   string
	headers http.Header
	timeout time.Duration
	base    time.Duration
	max     time.Duration
	dial    DialFunc
	log     zerolog.Logger
	newID   func() string

	// wmu serializes frame writes; concurrent Execute calls share the conn.
	wmu sync.Mutex

	mu            sync.Mutex
	state         State
	conn          Conn
	everConnected bool
	closed        bool
	attempt       int
	retryGen      uint64
	retryTimer    *time.Timer
	pending       map[string]*pendingCall
	snapshots     map[string]json.RawMessage
}

// New creates a disconnected bridge.
func New(opts Options) *Bridge {
	b := &Bridge{
		url:       opts.URL,
		token:     opts.AuthToken,
		headers:   opts.Headers,
		timeout:   opts.CommandTimeout,
		base:      opts.ReconnectBase,
		max:       opts.ReconnectMax,
		dial:      opts.Dial,
		log:       opts.Logger,
		newID:     uuid.NewString,
		pending:   make(map[string]*pendingCall),
		snapshots: make(map[string]json.RawMessage),
	}
	if b.timeout <= 0 {
		b.timeout = DefaultCommandTimeout
	}
	if b.base <= 0 {
		b.base = DefaultReconnectBase
	}
	if b.max <= 0 {
		b.max = DefaultReconnectMax
	}
	if b.dial == nil {
		b.dial = websocketDial
	}
	return b
}

// State returns the current connection state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Connect opens the engine link. Before the first successful connection a
// handshake failure is returned as a ConnectError; afterwards failures are
// handed to the reconnection supervisor instead of the caller.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateConnected {
		b.mu.Unlock()
		return nil
	}
	b.closed = false
	b.state = StateConnecting
	ever := b.everConnected
	b.mu.Unlock()

	conn, err := b.dial(ctx, b.url, b.handshakeHeader())

	b.mu.Lock()
	if b.closed {
		b.state = StateDisconnected
		b.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return ErrNotConnected
	}
	if err != nil {
		b.state = StateDisconnected
		if !ever {
			b.mu.Unlock()
			return &ConnectError{Err: err}
		}
		b.scheduleReconnectLocked()
		b.mu.Unlock()
		return nil
	}
	b.installConnLocked(conn)
	b.mu.Unlock()
	return nil
}

// Disconnect closes the link, fails all pending requests, and suppresses
// reconnection. It is idempotent.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	b.closed = true
	b.retryGen++
	if b.retryTimer != nil {
		b.retryTimer.Stop()
		b.retryTimer = nil
	}
	conn := b.conn
	b.conn = nil
	b.state = StateDisconnected
	calls := b.takePendingLocked()
	b.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	failCalls(calls)
}

// Execute sends a command and suspends the caller until the correlated
// response arrives, the timeout elapses, the connection drops, or ctx is
// canceled. Exactly one of those terminates the call.
func (b *Bridge) Execute(ctx context.Context, name string, payload json.RawMessage) (json.RawMessage, error) {
	b.mu.Lock()
	if b.state != StateConnected || b.conn == nil {
		b.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := b.conn
	id := b.newID()
	call := &pendingCall{ch: make(chan callResult, 1)}
	call.timer = time.AfterFunc(b.timeout, func() { b.expire(id, name) })
	b.pending[id] = call
	b.mu.Unlock()

	data, err := json.Marshal(envelope{Type: envelopeCommand, RequestID: id, Name: name, Payload: payload})
	if err != nil {
		b.removePending(id)
		return nil, fmt.Errorf("encoding command %s: %w", name, err)
	}

	b.wmu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, data)
	b.wmu.Unlock()
	if writeErr != nil {
		b.removePending(id)
		b.connLost(conn)
		return nil, fmt.Errorf("sending command %s: %w", name, ErrConnectionClosed)
	}

	select {
	case res := <-call.ch:
		return res.payload, res.err
	case <-ctx.Done():
		b.removePending(id)
		return nil, ctx.Err()
	}
}

// Snapshot returns the latest cached push payload for a channel.
func (b *Bridge) Snapshot(channel string) (json.RawMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.snapshots[channel]
	return data, ok
}

// Ping writes a websocket ping; a failed write counts as link loss.
func (b *Bridge) Ping() error {
	b.mu.Lock()
	conn := b.conn
	connected := b.state == StateConnected
	b.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteWait)); err != nil {
		b.connLost(conn)
		return err
	}
	return nil
}

func (b *Bridge) handshakeHeader() http.Header {
	header := http.Header{}
	for name, values := range b.headers {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	if b.token != "" {
		header.Set("Authorization", "Bearer "+b.token)
	} else {
		b.log.Warn().Str("url", b.url).Msg("connecting to engine without authentication; set an auth token outside development")
	}
	return header
}

// installConnLocked transitions to connected and starts the read loop.
func (b *Bridge) installConnLocked(conn Conn) {
	b.conn = conn
	b.state = StateConnected
	b.attempt = 0
	b.everConnected = true
	b.log.Info().Str("url", b.url).Msg("engine connected")
	go b.readLoop(conn)
}

// readLoop is the single goroutine that hands inbound frames to the
// registry; it exits when its conn is torn down.
func (b *Bridge) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.connLost(conn)
			return
		}
		b.handleFrame(data)
	}
}

func (b *Bridge) handleFrame(data []byte) {
	env, ok := decodeEnvelope(data)
	if !ok {
		// Tolerance over strictness: a bad frame from a differently
		// versioned engine must not take the link down.
		b.log.Debug().Int("bytes", len(data)).Msg("dropping malformed frame")
		return
	}

	if env.Type == envelopeCommandResult {
		b.mu.Lock()
		call, found := b.pending[env.RequestID]
		if found {
			delete(b.pending, env.RequestID)
			call.timer.Stop()
		}
		b.mu.Unlock()

		if !found {
			b.log.Debug().Str("request_id", env.RequestID).Msg("ignoring response for unknown or expired request")
			return
		}
		if env.Error != "" {
			call.ch <- callResult{err: &RemoteError{Message: env.Error}}
			return
		}
		call.ch <- callResult{payload: env.Result}
		return
	}

	if channel, isPush := pushChannel(env.Type); isPush {
		b.mu.Lock()
		b.snapshots[channel] = env.Data
		b.mu.Unlock()
		return
	}

	b.log.Debug().Str("type", env.Type).Msg("dropping frame with unknown type")
}

// connLost tears down a specific conn. A stale read loop whose conn was
// already replaced is a no-op.
func (b *Bridge) connLost(conn Conn) {
	b.mu.Lock()
	if b.conn != conn {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	b.state = StateDisconnected
	calls := b.takePendingLocked()
	explicit := b.closed
	if !explicit {
		b.scheduleReconnectLocked()
	}
	b.mu.Unlock()

	conn.Close()
	failCalls(calls)
	if !explicit {
		b.log.Warn().Int("failed_requests", len(calls)).Msg("engine connection lost")
	}
}

func (b *Bridge) expire(id, name string) {
	b.mu.Lock()
	call, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	call.ch <- callResult{err: &TimeoutError{Command: name, Timeout: b.timeout}}
}

func (b *Bridge) removePending(id string) {
	b.mu.Lock()
	if call, ok := b.pending[id]; ok {
		delete(b.pending, id)
		call.timer.Stop()
	}
	b.mu.Unlock()
}

func (b *Bridge) takePendingLocked() []*pendingCall {
	calls := make([]*pendingCall, 0, len(b.pending))
	for _, call := range b.pending {
		call.timer.Stop()
		calls = append(calls, call)
	}
	b.pending = make(map[string]*pendingCall)
	return calls
}

func failCalls(calls []*pendingCall) {
	for _, call := range calls {
		call.ch <- callResult{err: ErrConnectionClosed}
	}
}
