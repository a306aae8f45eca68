package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-lineprobe/types"
)

const (
	MetricsNamespace = "lineprobe"
)

// Connect attempt outcomes
const (
	ConnectOK      = "ok"
	ConnectRefused = "refused"
	ConnectError   = "error"
)

var (
	Debug                bool = true
	validResults              = []types.FixtureStatus{types.FixtureStatusPass, types.FixtureStatusFail}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	// Registry holds every lineprobe metric and is what the metrics server exposes.
	Registry = opmetrics.NewRegistry()
	factory  = promauto.With(Registry)

	errorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	fixturesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "fixtures_total",
		Help:      "Count of fixture runs by result and failure kind",
	}, []string{
		"result",
		"kind",
	})

	fixtureDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "fixture_duration_seconds",
		Help:      "Duration of fixture runs including server startup and teardown",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{
		"result",
	})

	connectAttemptsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "connect_attempts_total",
		Help:      "Count of connection attempts to the server under test",
	}, []string{
		"outcome",
	})

	runResults = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of fixture runs",
	}, []string{
		"run_id",
		"result",
	})

	runFixturesTotal = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_fixtures_total",
		Help:      "Number of fixtures in a run",
	}, []string{
		"run_id",
	})

	runFixturesPassed = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_fixtures_passed",
		Help:      "Number of passed fixtures in a run",
	}, []string{
		"run_id",
	})

	runFixturesFailed = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_fixtures_failed",
		Help:      "Number of failed fixtures in a run",
	}, []string{
		"run_id",
	})

	runDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a run",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordFixture records the outcome of one fixture.
func RecordFixture(result types.FixtureStatus, kind types.FailureKind, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordFixture - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "fixtures_total",
			"result", result,
			"kind", kind)
	}
	fixturesTotal.WithLabelValues(string(result), string(kind)).Inc()
	fixtureDuration.WithLabelValues(string(result)).Observe(duration.Seconds())
}

// RecordConnectAttempt counts one dial to the server under test.
func RecordConnectAttempt(outcome string) {
	connectAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordRun records the totals of a completed run.
func RecordRun(
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, result).Set(1)
	runFixturesTotal.WithLabelValues(runID).Set(float64(total))
	runFixturesPassed.WithLabelValues(runID).Set(float64(passed))
	runFixturesFailed.WithLabelValues(runID).Set(float64(failed))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidResult(result types.FixtureStatus) bool {
	return slices.Contains(validResults, result)
}
