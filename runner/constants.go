package runner

import "time"

// Fixture execution defaults
const (
	// DefaultHost is where the server under test listens
	DefaultHost = "localhost"

	// DefaultStartupGrace is how long to wait after spawning before checking
	// that the server is still alive
	DefaultStartupGrace = 100 * time.Millisecond

	// DefaultConnectTries bounds connection attempts while the server warms up
	DefaultConnectTries = 5

	// DefaultConnectInterval is the pause after each refused connection
	DefaultConnectInterval = 200 * time.Millisecond

	// DefaultExpectTimeout bounds the read for a single expect directive
	DefaultExpectTimeout = time.Second

	// DefaultDialTimeout bounds a single connection attempt
	DefaultDialTimeout = 2 * time.Second
)
