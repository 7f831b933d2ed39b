package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler processes a single IPC request and returns the response to write
// back to the client.
type Handler func(ctx context.Context, req *Request) *Response

var peerUIDMatchesCurrentUserFn = peerUIDMatchesCurrentUser

// Server accepts CLI and MCP tool connections on a Unix socket. Each
// connection carries exactly one request/response exchange.
type Server struct {
	socketPath string
	nonce      string
	handler    Handler
	log        zerolog.Logger
	listener   net.Listener
	wg         sync.WaitGroup
}

// NewServer creates an IPC server. It does not listen until Start.
func NewServer(socketPath, nonce string, handler Handler, log zerolog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		nonce:      nonce,
		handler:    handler,
		log:        log,
	}
}

// Start begins listening. Any stale socket left by a previous daemon is
// removed first.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		ln.Close()
		os.Remove(s.socketPath)
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

// Stop closes the listener, waits for in-flight requests, and removes the
// socket file.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	ok, err := peerUIDMatchesCurrentUserFn(conn)
	if err != nil {
		writeResponse(conn, &Response{ExitCode: ExitInternal, Stderr: "peer uid check failed"})
		return
	}
	if !ok {
		s.log.Warn().Msg("rejecting connection from foreign uid")
		writeResponse(conn, &Response{ExitCode: ExitInternal, Stderr: "peer uid mismatch"})
		return
	}

	var req Request
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&req); err != nil {
		writeResponse(conn, &Response{ExitCode: ExitInternal, Stderr: "invalid request"})
		return
	}

	if req.Nonce != s.nonce {
		s.log.Warn().Str("type", req.Type).Msg("rejecting request with bad nonce")
		writeResponse(conn, &Response{ExitCode: ExitInternal, Stderr: "nonce mismatch"})
		return
	}

	// Cancel the handler if the client hangs up early (Ctrl-C on the CLI
	// side), so an in-flight engine command does not outlive its caller.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var buf [1]byte
		conn.Read(buf[:]) //nolint: errcheck
		cancel()
	}()

	resp := s.handler(ctx, &req)
	_ = conn.SetReadDeadline(time.Now())
	<-done
	_ = conn.SetReadDeadline(time.Time{})
	writeResponse(conn, resp)
}

func writeResponse(conn net.Conn, resp *Response) {
	enc := json.NewEncoder(conn)
	enc.Encode(resp) //nolint: errcheck
}
