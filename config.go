package probe

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-lineprobe/flags"
	"github.com/ethereum-optimism/infra/op-lineprobe/registry"
	"github.com/ethereum-optimism/infra/op-lineprobe/server"
	"github.com/ethereum-optimism/infra/op-lineprobe/service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config holds the application configuration
type Config struct {
	Fixtures         []string // Explicit fixture paths from the command line
	ManifestFixtures []string // Fixture paths listed in the manifest
	FixturesDir      string   // Searched when neither of the above is set
	ManifestFile     string

	Server          server.Spec
	Host            string
	StartupGrace    time.Duration
	ConnectTries    int
	ConnectInterval time.Duration
	ExpectTimeout   time.Duration

	SummaryTable bool   // Print a table after the line summary
	ReportFile   string // Plain-text copy of the summary, empty disables it
	Colors       bool   // Follows --log.color, which defaults to whether stdout is a terminal
	Stdout       io.Writer

	Service service.Config
	Log     log.Logger
}

// NewConfig creates a new Config from cli context. Settings from the
// manifest apply unless the matching flag was set explicitly.
func NewConfig(ctx *cli.Context, log log.Logger, args []string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	spec := server.Spec{
		Command:   ctx.String(flags.ServerCmd.Name),
		Args:      ctx.StringSlice(flags.ServerArgs.Name),
		Port:      ctx.Int(flags.ServerPort.Name),
		PrintIO:   ctx.Bool(flags.ServerPrintIO.Name),
		Storage:   ctx.String(flags.ServerStorage.Name),
		KillGrace: ctx.Duration(flags.KillGrace.Name),
	}

	var manifestFixtures []string
	manifestFile := ctx.String(flags.Manifest.Name)
	if manifestFile != "" {
		reg, err := registry.NewRegistry(registry.Config{
			Log:          log,
			ManifestFile: manifestFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create registry: %w", err)
		}
		manifestFixtures = reg.Fixtures()
		reg.Server().Apply(&spec)
		overrideFromFlags(ctx, &spec)
	}

	if spec.Command == "" {
		return nil, fmt.Errorf("server command is required")
	}
	if spec.Port <= 0 || spec.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", spec.Port)
	}

	stdout := io.Writer(os.Stdout)
	if ctx.App != nil && ctx.App.Writer != nil {
		stdout = ctx.App.Writer
	}
	if ctx.Bool(flags.ServerOutput.Name) {
		spec.Output = stdout
	}

	return &Config{
		Fixtures:         args,
		ManifestFixtures: manifestFixtures,
		FixturesDir:      ctx.String(flags.FixturesDir.Name),
		ManifestFile:     manifestFile,
		Server:           spec,
		Host:             ctx.String(flags.Host.Name),
		StartupGrace:     ctx.Duration(flags.StartupGrace.Name),
		ConnectTries:     ctx.Int(flags.ConnectTries.Name),
		ConnectInterval:  ctx.Duration(flags.ConnectInterval.Name),
		ExpectTimeout:    ctx.Duration(flags.ExpectTimeout.Name),
		SummaryTable:     ctx.Bool(flags.SummaryTable.Name),
		ReportFile:       ctx.String(flags.ReportFile.Name),
		Colors:           oplog.ReadCLIConfig(ctx).Color,
		Stdout:           stdout,
		Service: service.Config{
			Metrics:     opmetrics.ReadCLIConfig(ctx),
			HealthzAddr: ctx.String(flags.HealthzAddr.Name),
		},
		Log: log,
	}, nil
}

// overrideFromFlags re-applies the server flags the user set explicitly, so
// they win over the manifest.
func overrideFromFlags(ctx *cli.Context, spec *server.Spec) {
	if ctx.IsSet(flags.ServerCmd.Name) {
		spec.Command = ctx.String(flags.ServerCmd.Name)
	}
	if ctx.IsSet(flags.ServerArgs.Name) {
		spec.Args = ctx.StringSlice(flags.ServerArgs.Name)
	}
	if ctx.IsSet(flags.ServerPort.Name) {
		spec.Port = ctx.Int(flags.ServerPort.Name)
	}
	if ctx.IsSet(flags.ServerPrintIO.Name) {
		spec.PrintIO = ctx.Bool(flags.ServerPrintIO.Name)
	}
	if ctx.IsSet(flags.ServerStorage.Name) {
		spec.Storage = ctx.String(flags.ServerStorage.Name)
	}
	if ctx.IsSet(flags.KillGrace.Name) {
		spec.KillGrace = ctx.Duration(flags.KillGrace.Name)
	}
}
