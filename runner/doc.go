// Package runner replays fixtures against a live server under test.
//
// For each fixture the runner:
//   - spawns the server on its fixed port and waits out a short startup grace
//   - connects with a bounded number of retries while the server warms up
//   - streams the fixture's directives, draining stale input before each send
//     and matching each expectation within a per-directive timeout
//   - closes the connection and kills the server on every exit path
//
// Mismatches and unexpected faults become failing results and the suite
// carries on. A server that dies during startup, or never accepts a
// connection, is fatal to the whole run.
package runner
