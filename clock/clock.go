package clock

import "time"

// Clock supplies the two time sources a record header can be stamped with.
type Clock interface {
	// WallTime returns the current wall-clock time. An error means the
	// clock is not available.
	WallTime() (time.Time, error)

	// Uptime returns the time elapsed since boot.
	Uptime() time.Duration
}

type system struct{}

// System returns the host clock.
func System() Clock {
	return system{}
}

func (system) WallTime() (time.Time, error) {
	return time.Now(), nil
}

func (system) Uptime() time.Duration {
	return uptime()
}

// Fixed is a Clock with settable readings, for tests and replays.
type Fixed struct {
	Wall    time.Time
	WallErr error
	Up      time.Duration
}

func (f *Fixed) WallTime() (time.Time, error) {
	return f.Wall, f.WallErr
}

func (f *Fixed) Uptime() time.Duration {
	return f.Up
}
