package luxi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/metrics"
)

// Handler executes decoded operations. The returned value is encoded as
// the result payload; an error becomes a failed response carrying its
// message.
type Handler interface {
	Handle(ctx context.Context, op Op) (interface{}, error)
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, op Op) (interface{}, error)

func (f HandlerFunc) Handle(ctx context.Context, op Op) (interface{}, error) {
	return f(ctx, op)
}

// ErrReadOnly is returned for mutating calls on a read-only server
var ErrReadOnly = errors.New("operation not allowed on a read-only socket")

// Server accepts LUXI connections. Each connection is served by its own
// goroutine and its requests are processed strictly in order.
type Server struct {
	handler  Handler
	readOnly bool
	timeouts Timeouts

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// NewServer creates a server dispatching to h. A read-only server refuses
// every method IsReadOnly rejects.
func NewServer(h Handler, readOnly bool, timeouts Timeouts) *Server {
	return &Server{
		handler:  h,
		readOnly: readOnly,
		timeouts: timeouts,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen opens the Unix socket at path, replacing a stale socket file
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	return l, nil
}

// Serve accepts connections on l until Close is called
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return l.Close()
	}
	s.listener = l
	s.mu.Unlock()

	logger := log.WithComponent("luxi")
	logger.Info().
		Str("addr", l.Addr().String()).
		Bool("read_only", s.readOnly).
		Msg("LUXI server listening")

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn serves requests from conn until the peer disconnects
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	metrics.LuxiConnections.Inc()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		metrics.LuxiConnections.Dec()
		conn.Close()
	}()

	connLog := log.WithComponent("luxi").With().Str("conn", uuid.New().String()).Logger()
	connLog.Debug().Msg("Connection accepted")

	// Idle connections may wait for their next request indefinitely
	t := NewTransport(conn, Timeouts{Send: s.timeouts.Send})
	for {
		msg, err := t.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				connLog.Debug().Err(err).Msg("Connection read failed")
			}
			return
		}

		reply := s.handle(ctx, msg)
		if err := t.Send(reply); err != nil {
			connLog.Warn().Err(err).Msg("Failed to send response")
			return
		}
	}
}

// handle turns one request message into a response message
func (s *Server) handle(ctx context.Context, msg []byte) []byte {
	method, args, err := ParseCall(msg)
	if err != nil {
		return s.failure("invalid", err)
	}
	if !knownMethod(method) {
		return s.failure("unknown", &DecodeError{Method: method, Reason: "unknown method"})
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LuxiRequestDuration, method)

	op, err := Decode(method, args)
	if err != nil {
		return s.failure(method, err)
	}
	if s.readOnly && !IsReadOnly(method) {
		return s.failure(method, ErrReadOnly)
	}

	result, err := s.handler.Handle(ctx, op)
	if err != nil {
		return s.failure(method, err)
	}

	reply, err := BuildResponse(true, result)
	if err != nil {
		return s.failure(method, err)
	}
	metrics.LuxiRequestsTotal.WithLabelValues(method, "success").Inc()
	logger := log.WithMethod(method)
	logger.Debug().Msg("Request handled")
	return reply
}

func (s *Server) failure(method string, err error) []byte {
	metrics.LuxiRequestsTotal.WithLabelValues(method, "error").Inc()
	logger := log.WithMethod(method)
	logger.Warn().Err(err).Msg("Request failed")

	return errorResponse(err.Error())
}

// fallbackFailure is sent when a failure message cannot be encoded
var fallbackFailure = []byte(`{"success":false,"result":"internal error"}`)

// errorResponse builds the success=false reply carrying msg
func errorResponse(msg string) []byte {
	reply, err := BuildResponse(false, msg)
	if err != nil {
		logger := log.WithComponent("luxi")
		logger.Error().Err(err).Msg("Failed to encode error response")
		return fallbackFailure
	}
	return reply
}

func knownMethod(method string) bool {
	for _, m := range Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Close stops accepting connections, closes the open ones and waits for
// their goroutines
func (s *Server) Close() error {
	s.closed.Store(true)

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}
