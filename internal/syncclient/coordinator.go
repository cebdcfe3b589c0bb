// Package syncclient keeps a local copy of the records collection in step with the server.
// It debounces edits, keeps at most one save in flight and retries failed saves once per failure.
package syncclient

import (
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/client_records_app/internal/core/domain"
)

// State is the coordinator's position in the save cycle.
type State string

const (
	StateClean        State = "clean"
	StateDirty        State = "dirty"
	StateScheduled    State = "scheduled"
	StateInFlight     State = "in-flight"
	StateRetryPending State = "retry-pending"
)

const (
	DefaultDebounce      = 800 * time.Millisecond
	DefaultRetryInterval = 5 * time.Second
)

// StateListener is told about every state change together with the last save error.
type StateListener func(state State, lastErr error)

// Coordinator owns the local copy of the collection.
type Coordinator struct {
	mu sync.Mutex

	transport     Transport
	scheduler     Scheduler
	debounce      time.Duration
	retryInterval time.Duration
	listener      StateListener
	logger        *slog.Logger

	state    State
	timer    Timer
	timerGen uint64
	// coalesce is set when the debounce timer fires during a save.
	coalesce bool

	local        []domain.ClientRecord
	localVersion uint64
	sentVersion  uint64
	baseline     []domain.ClientRecord
	updatedAt    string
	lastErr      error
	closed       bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithScheduler replaces the timer implementation.
func WithScheduler(s Scheduler) CoordinatorOption {
	return func(c *Coordinator) {
		c.scheduler = s
	}
}

// WithDebounce sets the quiet period after the last edit before saving.
func WithDebounce(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.debounce = d
	}
}

// WithRetryInterval sets the delay before a failed save is retried.
func WithRetryInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.retryInterval = d
	}
}

// WithStateListener registers a listener. It is called without the coordinator's lock held.
func WithStateListener(l StateListener) CoordinatorOption {
	return func(c *Coordinator) {
		c.listener = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// NewCoordinator starts clean on the given server snapshot. updatedAt is "" when the
// collection has never been written.
func NewCoordinator(transport Transport, records []domain.ClientRecord, updatedAt string, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		transport:     transport,
		scheduler:     RealScheduler{},
		debounce:      DefaultDebounce,
		retryInterval: DefaultRetryInterval,
		logger:        slog.Default(),
		state:         StateClean,
		local:         cloneRecords(records),
		baseline:      cloneRecords(records),
		updatedAt:     updatedAt,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error of the most recent failed save, or nil after a success.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Records returns a copy of the local collection.
func (c *Coordinator) Records() []domain.ClientRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneRecords(c.local)
}

// Baseline returns the last collection the server accepted and its stamp.
func (c *Coordinator) Baseline() ([]domain.ClientRecord, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneRecords(c.baseline), c.updatedAt
}

// ShouldWarnBeforeUnload reports whether leaving now could lose edits.
func (c *Coordinator) ShouldWarnBeforeUnload() bool {
	return c.State() != StateClean
}

// Update records a local edit and (re)starts the debounce timer. During a save the
// state stays in-flight and the edit is sent once the save completes.
func (c *Coordinator) Update(records []domain.ClientRecord) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.local = cloneRecords(records)
	c.localVersion++
	c.restartTimer(c.debounce, c.onDebounce)
	if c.state != StateInFlight {
		c.state = StateScheduled
	}
	c.unlockAndNotify()
}

// Retry cancels a pending retry and saves immediately. It does nothing while a save is
// in flight or when there is nothing to save.
func (c *Coordinator) Retry() {
	c.mu.Lock()
	if c.closed || c.state == StateInFlight || c.state == StateClean {
		c.mu.Unlock()
		return
	}
	c.stopTimer()
	req, version := c.beginSave()
	c.unlockAndNotify()
	c.send(req, version)
}

// Flush saves pending edits immediately instead of waiting for the debounce timer.
func (c *Coordinator) Flush() {
	c.onDebounce()
}

// Rebase adopts a newer server snapshot after a conflict while keeping local edits.
// The next save is made against updatedAt.
func (c *Coordinator) Rebase(records []domain.ClientRecord, updatedAt string) {
	c.mu.Lock()
	c.baseline = cloneRecords(records)
	c.updatedAt = updatedAt
	if c.state == StateClean {
		c.local = cloneRecords(records)
	}
	c.mu.Unlock()
}

// Close stops timers. Saves already in flight still complete.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimer()
}

func (c *Coordinator) onDebounce() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	switch c.state {
	case StateInFlight:
		c.coalesce = true
		c.mu.Unlock()
		return
	case StateClean:
		c.mu.Unlock()
		return
	}
	c.stopTimer()
	req, version := c.beginSave()
	c.unlockAndNotify()
	c.send(req, version)
}

func (c *Coordinator) onRetry() {
	c.mu.Lock()
	if c.closed || c.state != StateRetryPending {
		c.mu.Unlock()
		return
	}
	req, version := c.beginSave()
	c.unlockAndNotify()
	c.send(req, version)
}

// beginSave moves to in-flight. Must be called with mu held.
func (c *Coordinator) beginSave() (SaveRequest, uint64) {
	c.state = StateInFlight
	c.coalesce = false
	c.sentVersion = c.localVersion
	return SaveRequest{Records: cloneRecords(c.local), ExpectedUpdatedAt: c.updatedAt}, c.localVersion
}

func (c *Coordinator) send(req SaveRequest, version uint64) {
	var once sync.Once
	c.transport.Save(req, func(updatedAt string, err error) {
		once.Do(func() { c.complete(req, version, updatedAt, err) })
	})
}

func (c *Coordinator) complete(req SaveRequest, version uint64, updatedAt string, err error) {
	c.mu.Lock()

	if err != nil {
		c.lastErr = err
		if c.closed {
			c.state = StateDirty
			c.unlockAndNotify()
			return
		}
		if IsRetryable(err) {
			c.logger.Warn("Records save failed, retrying", slog.String("error", err.Error()), slog.Duration("retry_in", c.retryInterval))
			c.state = StateRetryPending
			c.restartTimer(c.retryInterval, c.onRetry)
		} else {
			c.logger.Warn("Records save rejected", slog.String("error", err.Error()))
			c.stopTimer()
			c.state = StateDirty
		}
		c.coalesce = false
		c.unlockAndNotify()
		return
	}

	c.lastErr = nil
	c.baseline = req.Records
	c.updatedAt = updatedAt

	switch {
	case c.coalesce && !c.closed:
		next, nextVersion := c.beginSave()
		c.unlockAndNotify()
		c.send(next, nextVersion)
	case c.localVersion != version:
		// edits arrived during the save and their debounce timer is still pending
		c.state = StateScheduled
		if c.timer == nil && !c.closed {
			c.restartTimer(c.debounce, c.onDebounce)
		}
		c.unlockAndNotify()
	default:
		c.state = StateClean
		c.unlockAndNotify()
	}
}

// restartTimer must be called with mu held. A callback whose timer was stopped or
// replaced before it acquired mu is ignored.
func (c *Coordinator) restartTimer(d time.Duration, f func()) {
	c.stopTimer()
	gen := c.timerGen
	c.timer = c.scheduler.AfterFunc(d, func() {
		c.mu.Lock()
		if gen != c.timerGen || c.closed {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		f()
	})
}

// stopTimer must be called with mu held.
func (c *Coordinator) stopTimer() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// unlockAndNotify releases mu and then reports the state to the listener.
func (c *Coordinator) unlockAndNotify() {
	state, lastErr, listener := c.state, c.lastErr, c.listener
	c.mu.Unlock()
	if listener != nil {
		listener(state, lastErr)
	}
}

func cloneRecords(records []domain.ClientRecord) []domain.ClientRecord {
	if records == nil {
		return nil
	}
	out := make([]domain.ClientRecord, len(records))
	copy(out, records)
	return out
}
