// Package exitcodes defines the exit codes used by op-lineprobe.
package exitcodes

// Exit code constants used by op-lineprobe:
//
// * Success (0): every fixture passed
// * TestFailure (1): at least one fixture failed, including missing fixture files
// * RuntimeErr (2): the run could not complete, eg. the server did not start or never accepted a connection
const (
	Success     = 0 // All fixtures pass
	TestFailure = 1 // Fixture failures
	RuntimeErr  = 2 // Startup, connect or configuration errors
)
