package syncclient

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already ran or was stopped.
	Stop() bool
}

// Scheduler runs a callback after a delay. Tests inject a manual implementation.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler is backed by time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
