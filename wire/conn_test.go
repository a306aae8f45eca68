package wire

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs handler for the first accepted connection and returns the
// listener address.
func startServer(t *testing.T, handler func(c net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}()
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) Conn {
	t.Helper()
	c, err := TCPDialer{Timeout: time.Second}.Dial(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestReadUntilKeepsRemainderBuffered(t *testing.T) {
	done := make(chan struct{})
	addr := startServer(t, func(c net.Conn) {
		_, _ = c.Write([]byte("RESP1RESP2"))
		<-done
	})
	defer close(done)

	c := dial(t, addr)
	got, err := c.ReadUntil([]byte("RESP1"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "RESP1", string(got))

	got, err = c.ReadUntil([]byte("RESP2"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "RESP2", string(got))
}

func TestReadUntilTimeoutReturnsWhatWasRead(t *testing.T) {
	done := make(chan struct{})
	addr := startServer(t, func(c net.Conn) {
		_, _ = c.Write([]byte("something else\n"))
		<-done
	})
	defer close(done)

	c := dial(t, addr)
	start := time.Now()
	got, err := c.ReadUntil([]byte("wanted"), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "something else\n", string(got))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	// Consumed: nothing is left for the next read.
	got, err = c.ReadUntil([]byte("wanted"), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadUntilAcrossChunks(t *testing.T) {
	done := make(chan struct{})
	addr := startServer(t, func(c net.Conn) {
		_, _ = c.Write([]byte("hel"))
		time.Sleep(20 * time.Millisecond)
		_, _ = c.Write([]byte("lo world"))
		<-done
	})
	defer close(done)

	c := dial(t, addr)
	got, err := c.ReadUntil([]byte("hello"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestReadUntilEOF(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		addr := startServer(t, func(c net.Conn) {})
		c := dial(t, addr)
		_, err := c.ReadUntil([]byte("x"), time.Second)
		assert.True(t, errors.Is(err, io.EOF))
	})

	t.Run("partial data", func(t *testing.T) {
		addr := startServer(t, func(c net.Conn) {
			_, _ = c.Write([]byte("bye"))
		})
		c := dial(t, addr)
		got, err := c.ReadUntil([]byte("x"), time.Second)
		require.NoError(t, err)
		assert.Equal(t, "bye", string(got))
	})
}

func TestDrainDiscardsBufferedInput(t *testing.T) {
	done := make(chan struct{})
	addr := startServer(t, func(c net.Conn) {
		_, _ = c.Write([]byte("RESP1RESP2"))
		<-done
	})
	defer close(done)

	c := dial(t, addr)
	_, err := c.ReadUntil([]byte("RESP1"), time.Second)
	require.NoError(t, err)

	require.NoError(t, c.Drain())

	got, err := c.ReadUntil([]byte("RESP2"), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteLine(t *testing.T) {
	lines := make(chan string, 1)
	addr := startServer(t, func(c net.Conn) {
		line, err := bufio.NewReader(c).ReadString('\n')
		if err == nil {
			lines <- line
		}
	})

	c := dial(t, addr)
	require.NoError(t, c.WriteLine("set key välue"))

	select {
	case line := <-lines:
		assert.Equal(t, "set key välue\n", line)
	case <-time.After(time.Second):
		t.Fatal("server never received the line")
	}
}

func TestIsConnRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = TCPDialer{Timeout: time.Second}.Dial(context.Background(), addr)
	require.Error(t, err)
	assert.True(t, IsConnRefused(err))
	assert.False(t, IsConnRefused(errors.New("boom")))
}
