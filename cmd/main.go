package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	probe "github.com/ethereum-optimism/infra/op-lineprobe"
	"github.com/ethereum-optimism/infra/op-lineprobe/exitcodes"
	"github.com/ethereum-optimism/infra/op-lineprobe/flags"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-lineprobe"
	app.Usage = "Integration test runner for line-oriented TCP servers"
	app.ArgsUsage = "[fixture ...]"
	app.Description = "op-lineprobe starts the server under test once per fixture, replays the fixture's " +
		"send and expect lines over TCP, and prints a pass/fail summary"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = exitErrHandler

	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// exitErrHandler maps typed errors to exit codes.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
}

func exitCode(err error) int {
	var exitErr cli.ExitCoder
	switch {
	case err == nil:
		return exitcodes.Success
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	case probe.IsRuntimeError(err):
		return exitcodes.RuntimeErr
	case probe.IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		// Flag parsing and other setup errors never got as far as a fixture
		return exitcodes.RuntimeErr
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := probe.NewConfig(ctx, log, ctx.Args().Slice())
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, probe.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	p, err := probe.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, probe.NewRuntimeError(fmt.Errorf("failed to create probe: %w", err))
	}

	return p, nil
}
