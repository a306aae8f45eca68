package probe

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-lineprobe/reporting"
	"github.com/ethereum-optimism/infra/op-lineprobe/runner"
)

// ResultFormatter is responsible for formatting and displaying fixture results.
type ResultFormatter interface {
	FormatResults(result *runner.RunnerResult) error
}

// ConsoleResultFormatter prints the final summary and optionally writes a
// plain-text report file.
type ConsoleResultFormatter struct {
	logger     log.Logger
	out        io.Writer
	colors     bool
	table      bool
	reportFile string
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger, out io.Writer, colors, table bool, reportFile string) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger:     logger,
		out:        out,
		colors:     colors,
		table:      table,
		reportFile: reportFile,
	}
}

// FormatResults prints the line summary, then the table when enabled.
func (f *ConsoleResultFormatter) FormatResults(result *runner.RunnerResult) error {
	f.logger.Debug("Printing results...")

	// Keep the summary clear of the server's mirrored output
	if _, err := io.WriteString(f.out, "\n"); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	formatters := []reporting.Formatter{reporting.LineFormatter{Colors: f.colors}}
	if f.table {
		formatters = append(formatters, reporting.TableFormatter{Colors: f.colors})
	}
	if err := reporting.Print(f.out, result, formatters...); err != nil {
		return err
	}

	if f.reportFile == "" {
		return nil
	}
	report := reporting.LineFormatter{}.Format(result) +
		reporting.TableFormatter{}.Format(result) +
		reporting.DetailFormatter{}.Format(result)
	if err := reporting.WriteReport(f.reportFile, report); err != nil {
		return err
	}
	f.logger.Info("Wrote report", "path", f.reportFile)
	return nil
}
