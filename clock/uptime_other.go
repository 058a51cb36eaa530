// +build !linux

package clock

import "time"

func uptime() time.Duration {
	return processUptime()
}
