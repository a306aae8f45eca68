// Package wire implements the line-oriented client side of the protocol
// spoken by the server under test: write a newline-terminated line, then read
// until an expected byte string shows up.
package wire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

const (
	// DrainWindow bounds how long Drain waits for bytes that are already in
	// flight. It only needs to cover data the kernel has buffered.
	DrainWindow = 5 * time.Millisecond

	// WriteTimeout bounds a single line write.
	WriteTimeout = 5 * time.Second

	readChunkSize = 4096
)

var _ Conn = (*lineConn)(nil)

// Conn is a text-line connection to the server under test.
type Conn interface {
	// Drain discards all buffered input and anything immediately readable
	// without blocking beyond DrainWindow.
	Drain() error

	// WriteLine writes payload followed by a newline.
	WriteLine(payload string) error

	// ReadUntil reads until expected appears in the accumulated input or the
	// timeout elapses. On a match it returns everything up to and including
	// the match and keeps the remainder buffered. On timeout it returns, and
	// consumes, everything read so far. On EOF it returns what was read, or
	// io.EOF if nothing was.
	ReadUntil(expected []byte, timeout time.Duration) ([]byte, error)

	Close() error
}

// Dialer opens connections to the server under test.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// TCPDialer dials plain TCP connections.
type TCPDialer struct {
	Timeout time.Duration
}

// Dial implements Dialer.
func (d TCPDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

// IsConnRefused reports whether err is a refused connection, the error seen
// while the server is still starting up.
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// lineConn wraps a net.Conn with a read buffer that survives between calls.
type lineConn struct {
	conn net.Conn
	buf  []byte
}

// NewConn wraps an established connection.
func NewConn(c net.Conn) Conn {
	return &lineConn{conn: c}
}

func (c *lineConn) Drain() error {
	c.buf = c.buf[:0]
	chunk := make([]byte, readChunkSize)
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(DrainWindow)); err != nil {
			return fmt.Errorf("failed to set drain deadline: %w", err)
		}
		n, err := c.conn.Read(chunk)
		if n > 0 {
			continue
		}
		if err == nil {
			continue
		}
		if isTimeout(err) {
			return nil
		}
		return err
	}
}

func (c *lineConn) WriteLine(payload string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')
	if _, err := c.conn.Write(line); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	return nil
}

func (c *lineConn) ReadUntil(expected []byte, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, readChunkSize)
	for {
		if idx := bytes.Index(c.buf, expected); idx >= 0 {
			return c.take(idx + len(expected)), nil
		}
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, err := c.conn.Read(chunk)
		c.buf = append(c.buf, chunk[:n]...)
		if err == nil {
			continue
		}
		if isTimeout(err) {
			return c.take(len(c.buf)), nil
		}
		if errors.Is(err, io.EOF) {
			if idx := bytes.Index(c.buf, expected); idx >= 0 {
				return c.take(idx + len(expected)), nil
			}
			if len(c.buf) > 0 {
				return c.take(len(c.buf)), nil
			}
			return nil, io.EOF
		}
		return nil, err
	}
}

// take removes and returns the first n buffered bytes.
func (c *lineConn) take(n int) []byte {
	out := make([]byte, n)
	copy(out, c.buf[:n])
	c.buf = append(c.buf[:0], c.buf[n:]...)
	return out
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
