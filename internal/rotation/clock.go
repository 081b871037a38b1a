package rotation

import "time"

// Clock schedules one-shot callbacks. The controller never reads wall time
// through it; schedule evaluation happens upstream in the resolver.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
