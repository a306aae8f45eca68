package probe

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-lineprobe/flags"
	"github.com/ethereum-optimism/infra/op-lineprobe/server"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// loadConfig runs a cli app with the real flag set and returns the Config
// that NewConfig builds from it.
func loadConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var cfg *Config
	var cfgErr error
	app := &cli.App{
		Flags:  flags.Flags,
		Writer: io.Discard,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.New(), ctx.Args().Slice())
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"op-lineprobe"}, args...)))
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(t)
	require.NoError(t, err)

	assert.Empty(t, cfg.Fixtures)
	assert.Empty(t, cfg.ManifestFixtures)
	assert.Equal(t, "tests", cfg.FixturesDir)
	assert.Equal(t, "python3", cfg.Server.Command)
	assert.Equal(t, []string{"mica", "--port", "1234", "--print-io", ":memory:"}, cfg.Server.Argv())
	assert.Equal(t, io.Discard, cfg.Server.Output)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 100*time.Millisecond, cfg.StartupGrace)
	assert.Equal(t, 5, cfg.ConnectTries)
	assert.Equal(t, 200*time.Millisecond, cfg.ConnectInterval)
	assert.Equal(t, time.Second, cfg.ExpectTimeout)
	assert.False(t, cfg.Service.Metrics.Enabled)
	assert.Empty(t, cfg.Service.HealthzAddr)
}

func TestNewConfigArgsAndFlags(t *testing.T) {
	cfg, err := loadConfig(t,
		"--server.cmd", "./server",
		"--server.args", "run",
		"--server.port", "4000",
		"--server.print-io=false",
		"--server.output=false",
		"--kill-grace", "1s",
		"--report-file", "out/report.txt",
		"tests/one", "tests/two",
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"tests/one", "tests/two"}, cfg.Fixtures)
	assert.Equal(t, "./server", cfg.Server.Command)
	assert.Equal(t, []string{"run", "--port", "4000", ":memory:"}, cfg.Server.Argv())
	assert.Nil(t, cfg.Server.Output)
	assert.Equal(t, time.Second, cfg.Server.KillGrace)
	assert.Equal(t, "out/report.txt", cfg.ReportFile)
}

func TestNewConfigManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "lineprobe.yaml", `
server:
  command: ./bin/server
  port: 5000
  storage: data.db
fixtures:
  - fixtures/basic
`)

	t.Run("manifest values apply", func(t *testing.T) {
		cfg, err := loadConfig(t, "--manifest", manifest)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "fixtures/basic")}, cfg.ManifestFixtures)
		assert.Equal(t, "./bin/server", cfg.Server.Command)
		assert.Equal(t, 5000, cfg.Server.Port)
		assert.Equal(t, "data.db", cfg.Server.Storage)
		assert.Equal(t, server.DefaultArgs, cfg.Server.Args)
	})

	t.Run("explicit flags win", func(t *testing.T) {
		cfg, err := loadConfig(t, "--manifest", manifest, "--server.port", "6000", "--server.storage", ":memory:")
		require.NoError(t, err)
		assert.Equal(t, "./bin/server", cfg.Server.Command)
		assert.Equal(t, 6000, cfg.Server.Port)
		assert.Equal(t, ":memory:", cfg.Server.Storage)
	})

	t.Run("broken manifest", func(t *testing.T) {
		broken := writeFile(t, dir, "broken.yaml", "fixtures: [\n")
		_, err := loadConfig(t, "--manifest", broken)
		require.Error(t, err)
	})
}

func TestNewConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"empty command", []string{"--server.cmd", ""}},
		{"port out of range", []string{"--server.port", "70000"}},
		{"zero connect tries", []string{"--connect-tries", "0"}},
		{"missing manifest", []string{"--manifest", "/nonexistent/lineprobe.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(t, tt.args...)
			require.Error(t, err)
		})
	}
}
