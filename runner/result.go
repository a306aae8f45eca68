package runner

import (
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-lineprobe/types"
)

// RunnerResult captures the results of one run over a set of fixtures. It is
// the only state shared between fixture runs.
type RunnerResult struct {
	RunID    string
	Fixtures []*types.FixtureResult // In processing order
	Status   types.FixtureStatus
	Duration time.Duration
	Stats    ResultStats
}

// ResultStats tracks fixture statistics for a run
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

func newRunnerResult(runID string, start time.Time) *RunnerResult {
	return &RunnerResult{
		RunID:  runID,
		Status: types.FixtureStatusPass,
		Stats:  ResultStats{StartTime: start},
	}
}

func (r *RunnerResult) add(result *types.FixtureResult) {
	r.Fixtures = append(r.Fixtures, result)
	r.Stats.Total++
	if result.Passed() {
		r.Stats.Passed++
	} else {
		r.Stats.Failed++
		r.Status = types.FixtureStatusFail
	}
}

func (r *RunnerResult) finish() {
	r.Stats.EndTime = time.Now()
	r.Duration = r.Stats.EndTime.Sub(r.Stats.StartTime)
}

// String returns a one-line summary of the run.
func (r *RunnerResult) String() string {
	return fmt.Sprintf("RunnerResult{RunID: %s, Status: %s, Total: %d, Passed: %d, Failed: %d, Duration: %s}",
		r.RunID, r.Status, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Duration.Round(time.Millisecond))
}
