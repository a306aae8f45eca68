// Package server launches and tears down the server under test.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
)

const (
	DefaultCommand = "python3"
	DefaultPort    = 1234
	DefaultStorage = ":memory:"

	PortFlag    = "--port"
	PrintIOFlag = "--print-io"

	outputWaitDelay = time.Second
	truncatedMarker = "...\n"
)

// DefaultArgs are the leading arguments of the default server command.
var DefaultArgs = []string{"mica"}

var (
	_ Spawner = (*ExecSpawner)(nil)
	_ Process = (*execProcess)(nil)
)

// Spec describes how to launch the server under test.
type Spec struct {
	Command   string
	Args      []string // Leading arguments, before the port and storage arguments
	Port      int
	PrintIO   bool
	Storage   string        // Positional storage argument, ":memory:" for non-persistent mode
	KillGrace time.Duration // SIGTERM grace before SIGKILL; zero kills immediately
	Output    io.Writer     // Optional live mirror of the server's stdout and stderr
}

// DefaultSpec returns the stock launch spec for the server under test.
func DefaultSpec() Spec {
	return Spec{
		Command: DefaultCommand,
		Args:    append([]string(nil), DefaultArgs...),
		Port:    DefaultPort,
		PrintIO: true,
		Storage: DefaultStorage,
	}
}

// Argv returns the arguments passed to Command.
func (s Spec) Argv() []string {
	argv := append([]string(nil), s.Args...)
	argv = append(argv, PortFlag, strconv.Itoa(s.Port))
	if s.PrintIO {
		argv = append(argv, PrintIOFlag)
	}
	if s.Storage != "" {
		argv = append(argv, s.Storage)
	}
	return argv
}

// Spawner starts server processes.
type Spawner interface {
	Spawn(ctx context.Context, spec Spec) (Process, error)
}

// Process is a handle on one running server.
type Process interface {
	Pid() int

	// Exited polls liveness without blocking.
	Exited() bool

	// Kill terminates the process and waits for it to be reaped. It is safe
	// to call more than once.
	Kill() error

	// Output returns the tail of the captured output with ANSI escapes removed.
	Output() string
}

// ExecSpawner spawns servers with os/exec.
type ExecSpawner struct {
	Log log.Logger
}

// Spawn implements Spawner.
func (s *ExecSpawner) Spawn(ctx context.Context, spec Spec) (Process, error) {
	if spec.Command == "" {
		return nil, errors.New("server command cannot be empty")
	}
	logger := s.Log
	if logger == nil {
		logger = log.Root()
	}

	// The process must outlive ctx cancellation until Kill tears it down, so
	// exec.CommandContext is not used here.
	cmd := exec.Command(spec.Command, spec.Argv()...)
	tail := newTailBuffer(defaultOutputTailBytes)
	var out io.Writer = tail
	if spec.Output != nil {
		out = io.MultiWriter(tail, spec.Output)
	}
	cmd.Stdout = out
	cmd.Stderr = out
	// Children that inherit the output pipes must not keep Wait blocked.
	cmd.WaitDelay = outputWaitDelay

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server %q: %w", spec.Command, err)
	}
	logger.Debug("Spawned server", "pid", cmd.Process.Pid, "cmd", spec.Command, "args", spec.Argv())

	p := &execProcess{
		cmd:       cmd,
		tail:      tail,
		killGrace: spec.KillGrace,
		done:      make(chan struct{}),
		log:       logger,
	}
	go p.wait()
	return p, nil
}

type execProcess struct {
	cmd       *exec.Cmd
	tail      *tailBuffer
	killGrace time.Duration
	log       log.Logger

	done    chan struct{}
	waitErr error

	killOnce sync.Once
	killErr  error
}

func (p *execProcess) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *execProcess) Kill() error {
	p.killOnce.Do(func() {
		p.killErr = p.kill()
	})
	return p.killErr
}

func (p *execProcess) kill() error {
	if p.Exited() {
		p.log.Debug("Server already exited", "pid", p.Pid(), "err", p.waitErr)
		return nil
	}

	if p.killGrace > 0 {
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err == nil {
			select {
			case <-p.done:
				p.log.Debug("Server terminated", "pid", p.Pid())
				return nil
			case <-time.After(p.killGrace):
				p.log.Warn("Server ignored SIGTERM, killing", "pid", p.Pid(), "grace", p.killGrace)
			}
		}
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill server pid %d: %w", p.Pid(), err)
	}
	<-p.done
	p.log.Debug("Server killed", "pid", p.Pid())
	return nil
}

func (p *execProcess) Output() string {
	out := stripansi.Strip(string(p.tail.Bytes()))
	if p.tail.Truncated() {
		return truncatedMarker + out
	}
	return out
}
