package probe

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-lineprobe/runner"
)

// FixtureExecutor is responsible for running fixtures.
type FixtureExecutor interface {
	RunFixtures(ctx context.Context, paths []string) (*runner.RunnerResult, error)
}

// DefaultFixtureExecutor implements the FixtureExecutor interface.
type DefaultFixtureExecutor struct {
	runner runner.TestRunner
	logger log.Logger
}

// NewDefaultFixtureExecutor creates a new DefaultFixtureExecutor.
func NewDefaultFixtureExecutor(runner runner.TestRunner, logger log.Logger) *DefaultFixtureExecutor {
	return &DefaultFixtureExecutor{
		runner: runner,
		logger: logger,
	}
}

// RunFixtures runs the fixtures in order. On a fatal error the partial
// result is returned together with the error.
func (e *DefaultFixtureExecutor) RunFixtures(ctx context.Context, paths []string) (*runner.RunnerResult, error) {
	e.logger.Info("Running fixtures...", "count", len(paths))
	result, err := e.runner.RunAllFixtures(ctx, paths)
	if err != nil {
		e.logger.Error("Error running fixtures", "error", err)
		return result, err
	}
	e.logger.Info("Fixture run completed", "run_id", result.RunID, "status", result.Status)
	return result, nil
}
