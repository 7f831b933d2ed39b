package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeConn is an in-memory Conn. Frames pushed to inbound are returned by
// ReadMessage; Close unblocks the reader with an error.
type fakeConn struct {
	inbound chan []byte
	writes  chan []byte

	mu        sync.Mutex
	writeErr  error
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	err := c.writeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.writes <- data
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeErr
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) setWriteErr(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

// sentFrame returns the next outbound envelope.
func (c *fakeConn) sentFrame(t *testing.T) envelope {
	t.Helper()
	select {
	case data := <-c.writes:
		env, ok := decodeEnvelope(data)
		if !ok {
			t.Fatalf("outbound frame is not an envelope: %s", data)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound frame sent")
		return envelope{}
	}
}

func testBridge(t *testing.T, conn *fakeConn, opts Options) *Bridge {
	t.Helper()
	if opts.Dial == nil {
		opts.Dial = func(ctx context.Context, url string, header http.Header) (Conn, error) {
			return conn, nil
		}
	}
	opts.Logger = zerolog.Nop()
	b := New(opts)
	t.Cleanup(b.Disconnect)
	return b
}

func connectedBridge(t *testing.T, conn *fakeConn, opts Options) *Bridge {
	t.Helper()
	b := testBridge(t, conn, opts)
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v, want nil", err)
	}
	return b
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestExecuteResolvesMatchedResponse(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{})

	done := make(chan struct{})
	var result json.RawMessage
	var execErr error
	go func() {
		defer close(done)
		result, execErr = b.Execute(context.Background(), "spawn_entity", json.RawMessage(`{"name":"crate"}`))
	}()

	sent := conn.sentFrame(t)
	if sent.Type != "command" || sent.Name != "spawn_entity" || sent.RequestID == "" {
		t.Fatalf("outbound envelope = %+v, want command spawn_entity with a request id", sent)
	}

	conn.inbound <- []byte(fmt.Sprintf(`{"type":"command_result","requestId":%q,"result":{"id":"42"}}`, sent.RequestID))

	<-done
	if execErr != nil {
		t.Fatalf("Execute() error = %v, want nil", execErr)
	}
	if string(result) != `{"id":"42"}` {
		t.Fatalf("Execute() result = %s, want {\"id\":\"42\"}", result)
	}
}

func TestExecuteRejectsWithRemoteError(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := b.Execute(context.Background(), "generate_model", nil)
		done <- err
	}()

	sent := conn.sentFrame(t)
	conn.inbound <- []byte(fmt.Sprintf(`{"type":"command_result","requestId":%q,"error":"prompt rejected"}`, sent.RequestID))

	err := <-done
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Execute() error = %v, want *RemoteError", err)
	}
	if remote.Message != "prompt rejected" {
		t.Fatalf("remote message = %q, want %q", remote.Message, "prompt rejected")
	}
}

func TestExecuteTimesOutWithoutResponse(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{CommandTimeout: 20 * time.Millisecond})

	_, err := b.Execute(context.Background(), "spawn_entity", nil)

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Execute() error = %v, want *TimeoutError", err)
	}
	if timeout.Command != "spawn_entity" || timeout.Timeout != 20*time.Millisecond {
		t.Fatalf("timeout error = %+v, want spawn_entity at 20ms", timeout)
	}

	b.mu.Lock()
	remaining := len(b.pending)
	b.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("pending registry has %d entries after timeout, want 0", remaining)
	}
}

func TestExecuteWhileDisconnectedRejectsImmediately(t *testing.T) {
	dialed := false
	b := testBridge(t, nil, Options{
		Dial: func(ctx context.Context, url string, header http.Header) (Conn, error) {
			dialed = true
			return nil, errors.New("unreachable")
		},
	})

	_, err := b.Execute(context.Background(), "spawn_entity", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Execute() error = %v, want ErrNotConnected", err)
	}
	if dialed {
		t.Fatal("Execute() while disconnected attempted a network dial")
	}
}

func TestConnectionLossFailsEveryPendingRequest(t *testing.T) {
	conn := newFakeConn()
	// A very large base keeps the reconnect timer from firing mid-test.
	b := connectedBridge(t, conn, Options{ReconnectBase: time.Hour, ReconnectMax: time.Hour})

	const inFlight = 3
	errs := make(chan error, inFlight)
	for i := 0; i < inFlight; i++ {
		go func(n int) {
			_, err := b.Execute(context.Background(), fmt.Sprintf("cmd_%d", n), nil)
			errs <- err
		}(i)
	}
	for i := 0; i < inFlight; i++ {
		conn.sentFrame(t)
	}

	conn.Close()

	for i := 0; i < inFlight; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrConnectionClosed) {
				t.Fatalf("pending request error = %v, want ErrConnectionClosed", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pending request did not terminate after connection loss")
		}
	}
}

func TestLateResponseAfterTimeoutIsIgnored(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{CommandTimeout: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := b.Execute(context.Background(), "spawn_entity", nil)
		done <- err
	}()
	sent := conn.sentFrame(t)

	var timeout *TimeoutError
	if err := <-done; !errors.As(err, &timeout) {
		t.Fatalf("Execute() error = %v, want *TimeoutError", err)
	}

	// Late response for the expired correlation id: dropped, and the link
	// keeps serving new requests.
	conn.inbound <- []byte(fmt.Sprintf(`{"type":"command_result","requestId":%q,"result":"late"}`, sent.RequestID))

	go func() {
		_, err := b.Execute(context.Background(), "undo", nil)
		done <- err
	}()
	second := conn.sentFrame(t)
	conn.inbound <- []byte(fmt.Sprintf(`{"type":"command_result","requestId":%q,"result":"ok"}`, second.RequestID))
	if err := <-done; err != nil {
		t.Fatalf("Execute() after late response error = %v, want nil", err)
	}
}

func TestWriteFailureTearsDownConnection(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{ReconnectBase: time.Hour, ReconnectMax: time.Hour})

	conn.setWriteErr(errors.New("broken pipe"))

	_, err := b.Execute(context.Background(), "spawn_entity", nil)
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Execute() error = %v, want ErrConnectionClosed", err)
	}
	if b.State() != StateDisconnected {
		t.Fatalf("State() = %s, want disconnected after write failure", b.State())
	}
}

func TestSnapshotKeepsOnlyLatestPushEvent(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{})

	conn.inbound <- []byte(`{"type":"scene_graph_update","data":{"rev":1}}`)
	conn.inbound <- []byte(`{"type":"scene_graph_update","data":{"rev":2}}`)

	waitFor(t, func() bool {
		data, ok := b.Snapshot(ChannelSceneGraph)
		return ok && string(data) == `{"rev":2}`
	}, "snapshot did not settle on the latest push payload")

	if _, ok := b.Snapshot(ChannelSelection); ok {
		t.Fatal("Snapshot(selection) has data, want empty before any push")
	}
}

func TestSnapshotChannelsAreIndependent(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{})

	conn.inbound <- []byte(`{"type":"selection_changed","data":["e1","e2"]}`)
	conn.inbound <- []byte(`{"type":"project_info","data":{"name":"demo"}}`)

	waitFor(t, func() bool {
		sel, okSel := b.Snapshot(ChannelSelection)
		info, okInfo := b.Snapshot(ChannelProjectInfo)
		return okSel && okInfo && string(sel) == `["e1","e2"]` && string(info) == `{"name":"demo"}`
	}, "push channels did not cache independently")
}

func TestMalformedFramesAreDroppedWithoutKillingTheLink(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{})

	conn.inbound <- []byte(`{{{not json`)
	conn.inbound <- []byte(`"just a string"`)
	conn.inbound <- []byte(`{"noType":true}`)

	done := make(chan error, 1)
	go func() {
		_, err := b.Execute(context.Background(), "undo", nil)
		done <- err
	}()
	sent := conn.sentFrame(t)
	conn.inbound <- []byte(fmt.Sprintf(`{"type":"command_result","requestId":%q,"result":null}`, sent.RequestID))

	if err := <-done; err != nil {
		t.Fatalf("Execute() after malformed frames error = %v, want nil", err)
	}
}

func TestConnectFailureBeforeFirstSuccessReturnsConnectError(t *testing.T) {
	b := testBridge(t, nil, Options{
		Dial: func(ctx context.Context, url string, header http.Header) (Conn, error) {
			return nil, errors.New("connection refused")
		},
	})

	err := b.Connect(context.Background())
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("Connect() error = %v, want *ConnectError", err)
	}
	if b.State() != StateDisconnected {
		t.Fatalf("State() = %s, want disconnected", b.State())
	}
}

func TestDialHeaderCarriesBearerToken(t *testing.T) {
	var seen http.Header
	conn := newFakeConn()
	b := testBridge(t, nil, Options{
		AuthToken: "secret-token",
		Headers:   http.Header{"X-Forge-Client": []string{"forgelink"}},
		Dial: func(ctx context.Context, url string, header http.Header) (Conn, error) {
			seen = header
			return conn, nil
		},
	})

	if err := b.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := seen.Get("Authorization"); got != "Bearer secret-token" {
		t.Fatalf("Authorization header = %q, want %q", got, "Bearer secret-token")
	}
	if got := seen.Get("X-Forge-Client"); got != "forgelink" {
		t.Fatalf("X-Forge-Client header = %q, want %q", got, "forgelink")
	}
}

func TestDialHeaderOmitsAuthorizationWithoutToken(t *testing.T) {
	var seen http.Header
	conn := newFakeConn()
	b := testBridge(t, nil, Options{
		Dial: func(ctx context.Context, url string, header http.Header) (Conn, error) {
			seen = header
			return conn, nil
		},
	})

	if err := b.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := seen.Get("Authorization"); got != "" {
		t.Fatalf("Authorization header = %q, want empty in development mode", got)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{})

	b.Disconnect()
	b.Disconnect()

	if b.State() != StateDisconnected {
		t.Fatalf("State() = %s, want disconnected", b.State())
	}
	if _, err := b.Execute(context.Background(), "undo", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Execute() after Disconnect error = %v, want ErrNotConnected", err)
	}
}

func TestExecuteHonorsCallerContext(t *testing.T) {
	conn := newFakeConn()
	b := connectedBridge(t, conn, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.Execute(ctx, "spawn_entity", nil)
		done <- err
	}()
	conn.sentFrame(t)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}

	b.mu.Lock()
	remaining := len(b.pending)
	b.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("pending registry has %d entries after cancel, want 0", remaining)
	}
}
