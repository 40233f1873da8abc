package luxi

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"time"
)

// Timeouts bounds each phase of a call
type Timeouts struct {
	Connect time.Duration `yaml:"connect"`
	Send    time.Duration `yaml:"send"`
	Receive time.Duration `yaml:"receive"`
}

// DefaultTimeouts returns the timeouts used when none are configured
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect: 10 * time.Second,
		Send:    60 * time.Second,
		Receive: 60 * time.Second,
	}
}

// Transport frames messages on a stream connection. It is not safe for
// concurrent use.
type Transport struct {
	conn     net.Conn
	reader   *bufio.Reader
	timeouts Timeouts
}

// NewTransport wraps an established connection
func NewTransport(conn net.Conn, timeouts Timeouts) *Transport {
	return &Transport{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		timeouts: timeouts,
	}
}

// DialTransport connects to the Unix socket at path
func DialTransport(path string, timeouts Timeouts) (*Transport, error) {
	conn, err := net.DialTimeout("unix", path, timeouts.Connect)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	return NewTransport(conn, timeouts), nil
}

// Send writes one message followed by the terminator
func (t *Transport) Send(msg []byte) error {
	if bytes.IndexByte(msg, ETX) >= 0 {
		return &ProtocolError{Reason: "message contains the terminator byte"}
	}
	if t.timeouts.Send > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.timeouts.Send)); err != nil {
			return &TransportError{Op: "send", Err: err}
		}
	}
	buf := make([]byte, 0, len(msg)+1)
	buf = append(append(buf, msg...), ETX)
	if _, err := t.conn.Write(buf); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// Receive reads one message and strips the terminator
func (t *Transport) Receive() ([]byte, error) {
	if t.timeouts.Receive > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeouts.Receive)); err != nil {
			return nil, &TransportError{Op: "receive", Err: err}
		}
	}
	msg, err := t.reader.ReadBytes(ETX)
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}
	return msg[:len(msg)-1], nil
}

// Close closes the connection
func (t *Transport) Close() error {
	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
