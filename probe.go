package probe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-lineprobe/fixture"
	"github.com/ethereum-optimism/infra/op-lineprobe/runner"
	"github.com/ethereum-optimism/infra/op-lineprobe/server"
	"github.com/ethereum-optimism/infra/op-lineprobe/service"
	"github.com/ethereum-optimism/infra/op-lineprobe/types"
	"github.com/ethereum-optimism/infra/op-lineprobe/wire"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// probe implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &probe{}

// probe runs every fixture once against fresh server instances, prints the
// summary and then asks the app to shut down.
type probe struct {
	config    *Config
	version   string
	executor  FixtureExecutor
	formatter ResultFormatter
	reporter  MetricsReporter
	service   *service.Service
	result    *runner.RunnerResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*probe, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating probe with config",
		"fixtures", config.Fixtures,
		"manifest", config.ManifestFile,
		"fixturesDir", config.FixturesDir,
		"server", config.Server.Command,
		"argv", config.Server.Argv())

	fixtureRunner, err := runner.NewTestRunner(runner.Config{
		Spawner:         &server.ExecSpawner{Log: config.Log},
		Dialer:          wire.TCPDialer{Timeout: runner.DefaultDialTimeout},
		Server:          config.Server,
		Host:            config.Host,
		StartupGrace:    config.StartupGrace,
		ConnectTries:    config.ConnectTries,
		ConnectInterval: config.ConnectInterval,
		ExpectTimeout:   config.ExpectTimeout,
		Log:             config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fixture runner: %w", err)
	}
	config.Log.Info("probe.New: created fixture runner")

	return &probe{
		config:           config,
		version:          version,
		executor:         NewDefaultFixtureExecutor(fixtureRunner, config.Log),
		formatter:        NewConsoleResultFormatter(config.Log, config.Stdout, config.Colors, config.SummaryTable, config.ReportFile),
		reporter:         NewDefaultMetricsReporter(),
		service:          service.New(config.Log),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the fixtures once.
// Start implements the cliapp.Lifecycle interface.
func (p *probe) Start(ctx context.Context) error {
	p.running.Store(true)
	p.config.Log.Info("Starting op-lineprobe", "version", p.version)

	if err := p.service.Start(ctx, p.config.Service); err != nil {
		return NewRuntimeError(err)
	}

	paths, err := fixture.Resolve(p.config.Fixtures, p.config.ManifestFixtures, p.config.FixturesDir)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to resolve fixtures: %w", err))
	}
	if len(paths) == 0 {
		p.config.Log.Warn("No fixtures found", "dir", p.config.FixturesDir)
	}

	result, runErr := p.executor.RunFixtures(ctx, paths)
	p.result = result

	// A fatal error still leaves the fixtures that finished, so report those too
	if result != nil {
		p.reporter.ReportResults(result)
		if err := p.formatter.FormatResults(result); err != nil {
			p.config.Log.Error("Failed to print results", "error", err)
		}
		p.config.Log.Info("Run finished", "result", result.String())
	}

	if runErr != nil {
		p.config.Log.Error("Runtime error running fixtures", "error", runErr)
		return NewRuntimeError(runErr)
	}

	if result.Status == types.FixtureStatusFail {
		p.config.Log.Warn("Fixture run completed with failures, returning exit code 1")
		return NewTestFailureError(result.String())
	}

	go func() {
		p.shutdownCallback(nil)
	}()
	return nil
}

// Stop stops the op-lineprobe service.
// Stop implements the cliapp.Lifecycle interface.
func (p *probe) Stop(ctx context.Context) error {
	if !p.running.Swap(false) {
		p.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	p.config.Log.Info("Stopping op-lineprobe")

	if err := p.service.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}

	p.config.Log.Info("op-lineprobe stopped successfully")
	return nil
}

// Stopped returns true if the op-lineprobe service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (p *probe) Stopped() bool {
	return !p.running.Load()
}
