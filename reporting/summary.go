package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-lineprobe/runner"
	"github.com/ethereum-optimism/infra/op-lineprobe/types"
)

const (
	summaryHeader = "FINAL RESULTS:\n--------------\n"
	statusOK      = "OK"
	statusNotOK   = "NOT OK"
)

// Formatter renders a run's results as text.
type Formatter interface {
	Format(result *runner.RunnerResult) string
}

var (
	_ Formatter = LineFormatter{}
	_ Formatter = TableFormatter{}
	_ Formatter = DetailFormatter{}
)

// LineFormatter renders one line per fixture in processing order:
//
//	tests/basic> OK
//	tests/errors> NOT OK ("ERR" != "OK\n")
type LineFormatter struct {
	Colors bool
}

func (f LineFormatter) Format(result *runner.RunnerResult) string {
	var b strings.Builder
	b.WriteString(summaryHeader)
	for _, r := range result.Fixtures {
		if r.Passed() {
			fmt.Fprintf(&b, "%s> %s\n", r.Path, f.colorize(text.FgGreen, statusOK))
		} else {
			fmt.Fprintf(&b, "%s> %s (%s)\n", r.Path, f.colorize(text.FgRed, statusNotOK), r.Diagnostic)
		}
	}
	return b.String()
}

func (f LineFormatter) colorize(c text.Color, s string) string {
	if !f.Colors {
		return s
	}
	return c.Sprint(s)
}

// TableFormatter renders the results as a table with a totals footer.
type TableFormatter struct {
	Colors bool
}

func (f TableFormatter) Format(result *runner.RunnerResult) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Fixture Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"#", "Fixture", "Duration", "Directives", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Fixture", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Directives", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for i, r := range result.Fixtures {
		t.AppendRow(table.Row{
			i + 1,
			r.Path,
			formatDuration(r.Duration),
			r.Directives,
			getResultString(r.Status),
			r.Diagnostic,
		})
	}

	if !f.Colors {
		t.SetStyle(table.StyleLight)
	} else if result.Status == types.FixtureStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed", result.Stats.Passed, result.Stats.Failed),
		formatDuration(result.Duration),
		"",
		getResultString(result.Status),
		"",
	})

	return t.Render() + "\n"
}

// DetailFormatter lists the fault details and server output of every failed
// fixture. Passing fixtures are omitted.
type DetailFormatter struct{}

func (DetailFormatter) Format(result *runner.RunnerResult) string {
	var b strings.Builder
	for _, r := range result.Fixtures {
		if r.Passed() {
			continue
		}
		fmt.Fprintf(&b, "=== %s (%s)\n", r.Path, r.Kind)
		fmt.Fprintf(&b, "%s\n", r.Diagnostic)
		if r.Detail != "" {
			fmt.Fprintf(&b, "--- detail\n%s\n", strings.TrimRight(r.Detail, "\n"))
		}
		if r.ServerOutput != "" {
			fmt.Fprintf(&b, "--- server output\n%s\n", strings.TrimRight(r.ServerOutput, "\n"))
		}
	}
	return b.String()
}

// Print writes every formatter's rendering of result to w, in order.
func Print(w io.Writer, result *runner.RunnerResult, formatters ...Formatter) error {
	for _, f := range formatters {
		if _, err := io.WriteString(w, f.Format(result)); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}

// WriteReport writes content to path as plain text, with ANSI escape codes
// removed.
func WriteReport(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(stripansi.Strip(content)), 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// getResultString returns a marker string representing the fixture result
func getResultString(status types.FixtureStatus) string {
	switch status {
	case types.FixtureStatusPass:
		return "✓ pass"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
