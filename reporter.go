package probe

import (
	"github.com/ethereum-optimism/infra/op-lineprobe/metrics"
	"github.com/ethereum-optimism/infra/op-lineprobe/runner"
)

// MetricsReporter is responsible for reporting metrics from fixture results.
type MetricsReporter interface {
	ReportResults(result *runner.RunnerResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults records the run totals.
func (r *DefaultMetricsReporter) ReportResults(result *runner.RunnerResult) {
	if result == nil {
		return
	}
	metrics.RecordRun(
		result.RunID,
		string(result.Status),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Duration,
	)
}
