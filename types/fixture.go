package types

import (
	"time"
)

// FixtureStatus represents the possible outcomes of a fixture run
type FixtureStatus string

const (
	FixtureStatusPass FixtureStatus = "pass"
	FixtureStatusFail FixtureStatus = "fail"
)

// FailureKind tags why a fixture failed. It replaces a catch-all failure
// path so that mismatches and framework faults stay distinguishable.
type FailureKind string

const (
	FailureNone     FailureKind = "none"
	FailureMismatch FailureKind = "mismatch" // expected bytes not seen before the read timeout
	FailureFault    FailureKind = "fault"    // unexpected error or panic while processing directives
	FailureMissing  FailureKind = "missing"  // fixture path missing or not a regular file
)

// Diagnostic messages shared by the runner and the summary printers.
const (
	DiagnosticFileNotFound = "file not found"
	DiagnosticFault        = "Exception in test framework"
)

// FixtureResult captures the outcome of a single fixture run. It is created
// once when the fixture finishes and is not modified afterwards.
type FixtureResult struct {
	Path         string
	Status       FixtureStatus
	Kind         FailureKind
	Diagnostic   string        // Short message shown in the summary, empty on success
	Detail       string        // Error text and stack trace for faults
	Directives   int           // Number of directives executed
	Duration     time.Duration // Wall time including server startup and teardown
	ServerOutput string        // Tail of the server's captured output
}

// Passed reports whether the fixture passed.
func (r *FixtureResult) Passed() bool {
	return r != nil && r.Status == FixtureStatusPass
}

// NewPassResult returns a passing result.
func NewPassResult(path string, directives int, duration time.Duration) *FixtureResult {
	return &FixtureResult{
		Path:       path,
		Status:     FixtureStatusPass,
		Kind:       FailureNone,
		Directives: directives,
		Duration:   duration,
	}
}

// NewFailResult returns a failing result of the given kind.
func NewFailResult(path string, kind FailureKind, diagnostic string) *FixtureResult {
	return &FixtureResult{
		Path:       path,
		Status:     FixtureStatusFail,
		Kind:       kind,
		Diagnostic: diagnostic,
	}
}

// NewMissingResult returns the result recorded for a fixture path that does
// not exist or is a directory.
func NewMissingResult(path string) *FixtureResult {
	return NewFailResult(path, FailureMissing, DiagnosticFileNotFound)
}
