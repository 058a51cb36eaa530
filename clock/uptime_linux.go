// +build linux

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// uptime reads CLOCK_BOOTTIME so suspended time is counted, like the
// controller's own uptime counter.
func uptime() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return processUptime()
	}
	return time.Duration(ts.Nano())
}
