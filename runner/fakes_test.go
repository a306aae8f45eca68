package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum-optimism/infra/op-lineprobe/server"
	"github.com/ethereum-optimism/infra/op-lineprobe/wire"
)

var errRefused = fmt.Errorf("dial tcp 127.0.0.1:1234: connect: %w", syscall.ECONNREFUSED)

// fakeProcess records kill calls instead of managing a real process.
type fakeProcess struct {
	pid    int
	exited bool
	output string

	mu    sync.Mutex
	kills int
}

func (p *fakeProcess) Pid() int       { return p.pid }
func (p *fakeProcess) Exited() bool   { return p.exited }
func (p *fakeProcess) Output() string { return p.output }

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kills++
	return nil
}

func (p *fakeProcess) Kills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}

// fakeSpawner hands out fakeProcesses and remembers them.
type fakeSpawner struct {
	exited bool
	output string
	err    error

	procs []*fakeProcess
	specs []server.Spec
}

func (s *fakeSpawner) Spawn(_ context.Context, spec server.Spec) (server.Process, error) {
	s.specs = append(s.specs, spec)
	if s.err != nil {
		return nil, s.err
	}
	p := &fakeProcess{pid: 1000 + len(s.procs), exited: s.exited, output: s.output}
	s.procs = append(s.procs, p)
	return p, nil
}

// fakeDialer fails the first refusals attempts with a refused error, or
// always fails with err when set.
type fakeDialer struct {
	refusals int
	err      error
	newConn  func() *fakeConn

	addrs []string
	conns []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, addr string) (wire.Conn, error) {
	d.addrs = append(d.addrs, addr)
	if d.err != nil {
		return nil, d.err
	}
	if len(d.addrs) <= d.refusals {
		return nil, errRefused
	}
	c := d.newConn()
	d.conns = append(d.conns, c)
	return c, nil
}

// fakeConn answers each written line with a canned response and records
// every call so tests can check ordering and side effects.
type fakeConn struct {
	responses map[string]string
	writeErr  error
	readErr   error
	readPanic bool

	pending []byte
	events  []string
	writes  []string
	drained []string
	closes  int
}

func newFakeConn(responses map[string]string) *fakeConn {
	return &fakeConn{responses: responses}
}

func (c *fakeConn) Drain() error {
	c.events = append(c.events, "drain")
	c.drained = append(c.drained, string(c.pending))
	c.pending = nil
	return nil
}

func (c *fakeConn) WriteLine(payload string) error {
	c.events = append(c.events, "write:"+payload)
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, payload)
	c.pending = append(c.pending, c.responses[payload]...)
	return nil
}

func (c *fakeConn) ReadUntil(expected []byte, _ time.Duration) ([]byte, error) {
	c.events = append(c.events, "read:"+string(expected))
	if c.readPanic {
		panic("connection state corrupted")
	}
	if c.readErr != nil {
		return nil, c.readErr
	}
	n := len(c.pending)
	if idx := bytes.Index(c.pending, expected); idx >= 0 {
		n = idx + len(expected)
	}
	out := append([]byte(nil), c.pending[:n]...)
	c.pending = c.pending[n:]
	return out, nil
}

func (c *fakeConn) Close() error {
	c.closes++
	return nil
}

var errBroken = errors.New("broken pipe")
