package clock

import "time"

var start = time.Now()

// processUptime is the monotonic time since the package was loaded.
func processUptime() time.Duration {
	return time.Since(start)
}
