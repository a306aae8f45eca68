package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-lineprobe/fixture"
	"github.com/ethereum-optimism/infra/op-lineprobe/metrics"
	"github.com/ethereum-optimism/infra/op-lineprobe/server"
	"github.com/ethereum-optimism/infra/op-lineprobe/types"
	"github.com/ethereum-optimism/infra/op-lineprobe/wire"
)

var _ TestRunner = (*runner)(nil)

// TestRunner defines the interface for running fixtures
type TestRunner interface {
	// RunAllFixtures runs the fixtures one after another. A fatal error
	// stops the run; the fixtures finished so far are still returned.
	RunAllFixtures(ctx context.Context, paths []string) (*RunnerResult, error)

	// RunFixture runs a single fixture against a fresh server. Mismatches
	// and faults are reported through the result; only startup and connect
	// failures are returned as errors.
	RunFixture(ctx context.Context, path string) (*types.FixtureResult, error)
}

// Config holds configuration for creating a new runner
type Config struct {
	Spawner         server.Spawner
	Dialer          wire.Dialer
	Server          server.Spec
	Host            string
	StartupGrace    time.Duration
	ConnectTries    int
	ConnectInterval time.Duration
	ExpectTimeout   time.Duration
	Log             log.Logger
}

// runner struct implements TestRunner interface
type runner struct {
	spawner         server.Spawner
	dialer          wire.Dialer
	server          server.Spec
	host            string
	startupGrace    time.Duration
	connectTries    int
	connectInterval time.Duration
	expectTimeout   time.Duration
	log             log.Logger
	tracer          trace.Tracer
}

// NewTestRunner creates a new test runner instance
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Spawner == nil {
		return nil, fmt.Errorf("spawner is required")
	}
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.ConnectTries < 0 {
		return nil, fmt.Errorf("connect tries cannot be negative: %d", cfg.ConnectTries)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.ConnectTries == 0 {
		cfg.ConnectTries = DefaultConnectTries
	}
	if cfg.ExpectTimeout <= 0 {
		cfg.ExpectTimeout = DefaultExpectTimeout
	}

	cfg.Log.Debug("NewTestRunner()", "host", cfg.Host, "port", cfg.Server.Port,
		"connectTries", cfg.ConnectTries, "connectInterval", cfg.ConnectInterval,
		"startupGrace", cfg.StartupGrace, "expectTimeout", cfg.ExpectTimeout)

	return &runner{
		spawner:         cfg.Spawner,
		dialer:          cfg.Dialer,
		server:          cfg.Server,
		host:            cfg.Host,
		startupGrace:    cfg.StartupGrace,
		connectTries:    cfg.ConnectTries,
		connectInterval: cfg.ConnectInterval,
		expectTimeout:   cfg.ExpectTimeout,
		log:             cfg.Log,
		tracer:          otel.Tracer("fixture runner"),
	}, nil
}

// RunAllFixtures implements the TestRunner interface
func (r *runner) RunAllFixtures(ctx context.Context, paths []string) (*RunnerResult, error) {
	result := newRunnerResult(uuid.New().String(), time.Now())
	r.log.Debug("Running all fixtures", "run_id", result.RunID, "count", len(paths))

	for _, path := range paths {
		var fixtureResult *types.FixtureResult
		if fixture.Exists(path) {
			var err error
			fixtureResult, err = r.RunFixture(ctx, path)
			if err != nil {
				metrics.RecordErrorDetails("fixture", err)
				result.finish()
				return result, fmt.Errorf("fixture %s: %w", path, err)
			}
		} else {
			r.log.Error("File not found, or is a directory", "path", path)
			fixtureResult = types.NewMissingResult(path)
		}

		result.add(fixtureResult)
		metrics.RecordFixture(fixtureResult.Status, fixtureResult.Kind, fixtureResult.Duration)
	}

	result.finish()
	return result, nil
}

// RunFixture implements the TestRunner interface
func (r *runner) RunFixture(ctx context.Context, path string) (*types.FixtureResult, error) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("fixture %s", path),
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	start := time.Now()
	r.log.Info("Running fixture", "path", path)

	proc, err := r.spawner.Spawn(ctx, r.server)
	if err != nil {
		span.SetStatus(codes.Error, "spawn failed")
		return nil, &StartupError{Err: err}
	}
	defer r.kill(proc)

	if err := sleep(ctx, r.startupGrace); err != nil {
		return nil, &StartupError{Pid: proc.Pid(), Err: err}
	}
	if proc.Exited() {
		span.SetStatus(codes.Error, "server exited during startup")
		output := proc.Output()
		r.log.Error("Server exited during startup", "pid", proc.Pid(), "output", output)
		return nil, &StartupError{Pid: proc.Pid(), Output: output}
	}

	conn, err := r.connect(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "connect failed")
		return nil, err
	}
	defer r.close(conn)

	out := r.execute(ctx, path, conn)
	duration := time.Since(start)
	span.SetAttributes(attribute.Int("directives", out.directives))

	if out.kind == types.FailureNone {
		r.log.Info("Fixture passed", "path", path, "directives", out.directives, "duration", duration)
		return types.NewPassResult(path, out.directives, duration), nil
	}

	span.SetStatus(codes.Error, out.diagnostic)
	result := &types.FixtureResult{
		Path:         path,
		Status:       types.FixtureStatusFail,
		Kind:         out.kind,
		Diagnostic:   out.diagnostic,
		Detail:       out.detail,
		Directives:   out.directives,
		Duration:     duration,
		ServerOutput: proc.Output(),
	}
	r.log.Warn("Fixture failed", "path", path, "kind", result.Kind, "diagnostic", result.Diagnostic)
	return result, nil
}

// connect dials the server, retrying while it refuses connections.
func (r *runner) connect(ctx context.Context) (wire.Conn, error) {
	addr := net.JoinHostPort(r.host, strconv.Itoa(r.server.Port))

	var conn wire.Conn
	attempts := 0
	operation := func() error {
		attempts++
		c, err := r.dialer.Dial(ctx, addr)
		if err == nil {
			metrics.RecordConnectAttempt(metrics.ConnectOK)
			conn = c
			return nil
		}
		if wire.IsConnRefused(err) {
			metrics.RecordConnectAttempt(metrics.ConnectRefused)
			r.log.Debug("Server not accepting connections yet", "addr", addr, "attempt", attempts)
			return err
		}
		metrics.RecordConnectAttempt(metrics.ConnectError)
		return backoff.Permanent(err)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.connectInterval), uint64(r.connectTries-1)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		r.log.Error("Could not connect to server", "addr", addr, "attempts", attempts, "err", err)
		return nil, &ConnectError{Addr: addr, Attempts: attempts, Err: err}
	}
	r.log.Debug("Connected to server", "addr", addr, "attempts", attempts)
	return conn, nil
}

// outcome is what directive processing produced, before it becomes a result.
type outcome struct {
	directives int
	kind       types.FailureKind
	diagnostic string
	detail     string
}

// execute streams the fixture's directives over conn. It never panics and
// never returns an error: every failure is folded into the outcome.
func (r *runner) execute(ctx context.Context, path string, conn wire.Conn) (out outcome) {
	out.kind = types.FailureNone
	line := 0

	defer func() {
		if p := recover(); p != nil {
			out = r.fault(path, line, out.directives, fmt.Errorf("panic: %v", p), debug.Stack())
		}
	}()

	rd, err := fixture.Open(path)
	if err != nil {
		return r.fault(path, line, out.directives, err, nil)
	}
	defer rd.Close()

	for {
		if err := ctx.Err(); err != nil {
			return r.fault(path, line, out.directives, err, nil)
		}

		d, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			return r.fault(path, line, out.directives, err, nil)
		}
		line = d.Line
		out.directives++

		switch d.Kind {
		case fixture.Send:
			// Stale output from an earlier command must not satisfy a later expectation.
			if err := conn.Drain(); err != nil {
				return r.fault(path, line, out.directives, fmt.Errorf("failed to drain connection: %w", err), nil)
			}
			if err := conn.WriteLine(d.Payload); err != nil {
				return r.fault(path, line, out.directives, err, nil)
			}

		case fixture.Expect:
			expected := d.Bytes()
			got, err := conn.ReadUntil(expected, r.expectTimeout)
			if err != nil {
				return r.fault(path, line, out.directives, fmt.Errorf("failed to read response: %w", err), nil)
			}
			if !bytes.Contains(got, expected) {
				r.log.Warn("Expectation not met", "path", path, "line", line,
					"expected", fmt.Sprintf("%q", expected), "got", fmt.Sprintf("%q", got))
				out.kind = types.FailureMismatch
				out.diagnostic = MismatchDiagnostic(expected, got)
				return out
			}

		default:
			return r.fault(path, line, out.directives, fmt.Errorf("unknown directive kind %s", d.Kind), nil)
		}
	}
}

func (r *runner) fault(path string, line, directives int, err error, stack []byte) outcome {
	detail := fmt.Sprintf("%s:%d: %v", path, line, err)
	if len(stack) > 0 {
		detail = fmt.Sprintf("%s\n%s", detail, stack)
	}
	r.log.Error("Unhandled error in fixture", "path", path, "line", line, "err", err)
	if len(stack) > 0 {
		r.log.Error("Stack trace", "stack", string(stack))
	}
	return outcome{
		directives: directives,
		kind:       types.FailureFault,
		diagnostic: types.DiagnosticFault,
		detail:     detail,
	}
}

// MismatchDiagnostic renders the expected and actual bytes as quoted literals.
func MismatchDiagnostic(expected, got []byte) string {
	return fmt.Sprintf("%q != %q", expected, got)
}

func (r *runner) kill(proc server.Process) {
	if err := proc.Kill(); err != nil {
		metrics.RecordErrorDetails("kill", err)
		r.log.Error("Failed to kill server", "pid", proc.Pid(), "err", err)
	}
}

func (r *runner) close(conn wire.Conn) {
	if err := conn.Close(); err != nil {
		r.log.Warn("Failed to close connection", "err", err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
