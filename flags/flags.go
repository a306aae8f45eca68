package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-lineprobe/runner"
	"github.com/ethereum-optimism/infra/op-lineprobe/server"
	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_LINEPROBE"

// DefaultFixturesDir is searched when no fixtures are named on the command line or in a manifest
const DefaultFixturesDir = "tests"

var (
	FixturesDir = &cli.StringFlag{
		Name:    "fixtures-dir",
		Value:   DefaultFixturesDir,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FIXTURES_DIR"),
		Usage:   "Directory whose regular files are run as fixtures when none are given explicitly",
	}
	Manifest = &cli.StringFlag{
		Name:    "manifest",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MANIFEST"),
		Usage:   "Path to a YAML manifest listing fixtures and server settings (eg. 'lineprobe.yaml')",
	}
	ServerCmd = &cli.StringFlag{
		Name:    "server.cmd",
		Value:   server.DefaultCommand,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVER_CMD"),
		Usage:   "Executable that starts the server under test",
	}
	ServerArgs = &cli.StringSliceFlag{
		Name:    "server.args",
		Value:   cli.NewStringSlice(server.DefaultArgs...),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVER_ARGS"),
		Usage:   "Leading arguments for the server command, before the port and storage arguments",
	}
	ServerPort = &cli.IntFlag{
		Name:    "server.port",
		Value:   server.DefaultPort,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVER_PORT"),
		Usage:   "TCP port the server is told to listen on and the runner connects to",
	}
	ServerStorage = &cli.StringFlag{
		Name:    "server.storage",
		Value:   server.DefaultStorage,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVER_STORAGE"),
		Usage:   "Storage argument passed to the server (':memory:' for a non-persistent store)",
	}
	ServerPrintIO = &cli.BoolFlag{
		Name:    "server.print-io",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVER_PRINT_IO"),
		Usage:   "Pass --print-io to the server so it logs its traffic",
	}
	ServerOutput = &cli.BoolFlag{
		Name:    "server.output",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVER_OUTPUT"),
		Usage:   "Mirror the server's stdout and stderr to the runner's stdout",
	}
	KillGrace = &cli.DurationFlag{
		Name:    "kill-grace",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "KILL_GRACE"),
		Usage:   "Time between SIGTERM and SIGKILL when stopping the server. 0 kills immediately.",
	}
	StartupGrace = &cli.DurationFlag{
		Name:    "startup-grace",
		Value:   runner.DefaultStartupGrace,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STARTUP_GRACE"),
		Usage:   "Wait after spawning the server before checking it is still running",
	}
	ConnectTries = &cli.IntFlag{
		Name:    "connect-tries",
		Value:   runner.DefaultConnectTries,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONNECT_TRIES"),
		Usage:   "Maximum connection attempts while the server refuses connections",
	}
	ConnectInterval = &cli.DurationFlag{
		Name:    "connect-interval",
		Value:   runner.DefaultConnectInterval,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONNECT_INTERVAL"),
		Usage:   "Pause after each refused connection attempt",
	}
	ExpectTimeout = &cli.DurationFlag{
		Name:    "expect-timeout",
		Value:   runner.DefaultExpectTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXPECT_TIMEOUT"),
		Usage:   "How long each expect line waits for its bytes to arrive",
	}
	Host = &cli.StringFlag{
		Name:    "host",
		Value:   runner.DefaultHost,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HOST"),
		Usage:   "Host the runner connects to",
	}
	SummaryTable = &cli.BoolFlag{
		Name:    "summary-table",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUMMARY_TABLE"),
		Usage:   "Also print the results as a table after the line summary",
	}
	ReportFile = &cli.StringFlag{
		Name:    "report-file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_FILE"),
		Usage:   "Write a plain-text copy of the summary, with failure details, to this path",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Serve /healthz on this address while running (eg. '0.0.0.0:8080'). Empty disables it.",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	FixturesDir,
	Manifest,
	ServerCmd,
	ServerArgs,
	ServerPort,
	ServerStorage,
	ServerPrintIO,
	ServerOutput,
	KillGrace,
	StartupGrace,
	ConnectTries,
	ConnectInterval,
	ExpectTimeout,
	Host,
	SummaryTable,
	ReportFile,
	HealthzAddr,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	if ctx.Int(ConnectTries.Name) < 1 {
		return fmt.Errorf("flag %s must be at least 1", ConnectTries.Name)
	}
	return nil
}
