package syncclient_test

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	"github.com/SscSPs/client_records_app/internal/syncclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualScheduler fires timers only when the test advances its clock.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) syncclient.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward and runs every due timer in order.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		s.mu.Lock()
		sort.SliceStable(s.timers, func(i, j int) bool { return s.timers[i].at < s.timers[j].at })
		var due *manualTimer
		for _, t := range s.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = t
				break
			}
		}
		if due == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		due.fired = true
		s.now = due.at
		s.mu.Unlock()
		due.f()
	}
}

// Pending reports how many timers are armed.
func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeTransport holds every save until the test resolves it.
type fakeTransport struct {
	mu      sync.Mutex
	pending []pendingSave
	sent    []syncclient.SaveRequest
}

type pendingSave struct {
	req  syncclient.SaveRequest
	done syncclient.SaveCallback
}

func (f *fakeTransport) Save(req syncclient.SaveRequest, done syncclient.SaveCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, pendingSave{req: req, done: done})
	f.sent = append(f.sent, req)
}

func (f *fakeTransport) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *fakeTransport) Sent() []syncclient.SaveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]syncclient.SaveRequest(nil), f.sent...)
}

func (f *fakeTransport) resolve(t *testing.T, updatedAt string, err error) syncclient.SaveRequest {
	t.Helper()
	f.mu.Lock()
	require.NotEmpty(t, f.pending, "no save in flight")
	p := f.pending[0]
	f.pending = f.pending[1:]
	f.mu.Unlock()
	p.done(updatedAt, err)
	return p.req
}

const debounce = 500 * time.Millisecond
const retryEvery = 5 * time.Second

func records(names ...string) []domain.ClientRecord {
	out := make([]domain.ClientRecord, 0, len(names))
	for _, n := range names {
		out = append(out, domain.ClientRecord{ID: n, ClientName: n})
	}
	return out
}

type harness struct {
	sched     *manualScheduler
	transport *fakeTransport
	coord     *syncclient.Coordinator
	states    []syncclient.State
}

func newHarness(t *testing.T, updatedAt string) *harness {
	t.Helper()
	h := &harness{sched: &manualScheduler{}, transport: &fakeTransport{}}
	h.coord = syncclient.NewCoordinator(h.transport, records("a"), updatedAt,
		syncclient.WithScheduler(h.sched),
		syncclient.WithDebounce(debounce),
		syncclient.WithRetryInterval(retryEvery),
		syncclient.WithStateListener(func(s syncclient.State, _ error) { h.states = append(h.states, s) }),
	)
	t.Cleanup(h.coord.Close)
	return h
}

func TestCoordinator_DebouncesEdits(t *testing.T) {
	h := newHarness(t, "2026-02-21T12:00:00.000Z")
	assert.Equal(t, syncclient.StateClean, h.coord.State())
	assert.False(t, h.coord.ShouldWarnBeforeUnload())

	h.coord.Update(records("a", "b"))
	h.sched.Advance(300 * time.Millisecond)
	h.coord.Update(records("a", "b", "c"))
	assert.Equal(t, syncclient.StateScheduled, h.coord.State())
	assert.True(t, h.coord.ShouldWarnBeforeUnload())

	// the second edit restarted the timer
	h.sched.Advance(300 * time.Millisecond)
	assert.Equal(t, 0, h.transport.InFlight())

	h.sched.Advance(200 * time.Millisecond)
	require.Equal(t, 1, h.transport.InFlight())
	assert.Equal(t, syncclient.StateInFlight, h.coord.State())

	req := h.transport.resolve(t, "2026-02-21T12:00:01.000Z", nil)
	assert.Len(t, req.Records, 3)
	assert.Equal(t, "2026-02-21T12:00:00.000Z", req.ExpectedUpdatedAt)
	assert.Equal(t, syncclient.StateClean, h.coord.State())

	baseline, stamp := h.coord.Baseline()
	assert.Len(t, baseline, 3)
	assert.Equal(t, "2026-02-21T12:00:01.000Z", stamp)
	assert.NoError(t, h.coord.LastError())
}

func TestCoordinator_FirstWriteSendsNullPrecondition(t *testing.T) {
	h := newHarness(t, "")
	h.coord.Update(records("a", "b"))
	h.sched.Advance(debounce)

	req := h.transport.resolve(t, "2026-02-21T12:00:00.000Z", nil)
	assert.Equal(t, "", req.ExpectedUpdatedAt)
}

func TestCoordinator_CoalescesEditsDuringFlight(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("a", "b"))
	h.sched.Advance(debounce)
	require.Equal(t, 1, h.transport.InFlight())

	// edit during flight, and its debounce fires before the save returns
	h.coord.Update(records("a", "b", "c"))
	assert.Equal(t, syncclient.StateInFlight, h.coord.State())
	h.sched.Advance(debounce)
	assert.Equal(t, 1, h.transport.InFlight(), "never two concurrent writes")

	h.transport.resolve(t, "s1", nil)
	require.Equal(t, 1, h.transport.InFlight(), "exactly one follow-up save")
	assert.Equal(t, syncclient.StateInFlight, h.coord.State())

	req := h.transport.resolve(t, "s2", nil)
	assert.Equal(t, "s1", req.ExpectedUpdatedAt)
	assert.Len(t, req.Records, 3)
	assert.Equal(t, syncclient.StateClean, h.coord.State())
	assert.Len(t, h.transport.Sent(), 2)
}

func TestCoordinator_EditDuringFlightWithoutTimerFiring(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("a", "b"))
	h.sched.Advance(debounce)

	h.coord.Update(records("a", "b", "c"))
	h.transport.resolve(t, "s1", nil)
	assert.Equal(t, syncclient.StateScheduled, h.coord.State())
	assert.Equal(t, 0, h.transport.InFlight())

	h.sched.Advance(debounce)
	req := h.transport.resolve(t, "s2", nil)
	assert.Len(t, req.Records, 3)
	assert.Equal(t, syncclient.StateClean, h.coord.State())
}

func TestCoordinator_RetriesOnceAfterFailure(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("a", "b"))
	h.sched.Advance(debounce)

	outage := &syncclient.APIError{Status: http.StatusServiceUnavailable, Code: "records_storage_unavailable"}
	h.transport.resolve(t, "", outage)
	assert.Equal(t, syncclient.StateRetryPending, h.coord.State())
	assert.ErrorIs(t, h.coord.LastError(), outage)
	assert.True(t, h.coord.ShouldWarnBeforeUnload())
	assert.Equal(t, 1, h.sched.Pending())

	h.sched.Advance(retryEvery - time.Millisecond)
	assert.Equal(t, 0, h.transport.InFlight())
	h.sched.Advance(time.Millisecond)
	require.Equal(t, 1, h.transport.InFlight())

	h.transport.resolve(t, "s1", nil)
	assert.Equal(t, syncclient.StateClean, h.coord.State())
	assert.NoError(t, h.coord.LastError())
}

func TestCoordinator_ManualRetryCancelsTimer(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("a", "b"))
	h.sched.Advance(debounce)
	h.transport.resolve(t, "", errors.New("network down"))
	require.Equal(t, syncclient.StateRetryPending, h.coord.State())

	h.coord.Retry()
	require.Equal(t, 1, h.transport.InFlight())
	assert.Equal(t, 0, h.sched.Pending(), "pending retry timer was cancelled")

	// the cancelled timer must not trigger a second save
	h.sched.Advance(retryEvery)
	assert.Equal(t, 1, h.transport.InFlight())

	h.transport.resolve(t, "s1", nil)
	assert.Equal(t, syncclient.StateClean, h.coord.State())
	assert.Len(t, h.transport.Sent(), 2)
}

func TestCoordinator_RetryIsNoOpWhenCleanOrInFlight(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Retry()
	assert.Empty(t, h.transport.Sent())

	h.coord.Update(records("b"))
	h.sched.Advance(debounce)
	h.coord.Retry()
	assert.Len(t, h.transport.Sent(), 1)
}

func TestCoordinator_ValidationFailureParksDirty(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("a", "b"))
	h.sched.Advance(debounce)

	invalid := &syncclient.APIError{Status: http.StatusBadRequest, Code: "records_payload_invalid_date"}
	h.transport.resolve(t, "", invalid)

	assert.Equal(t, syncclient.StateDirty, h.coord.State())
	assert.Equal(t, 0, h.sched.Pending(), "validation failures are not retried automatically")
	assert.True(t, h.coord.ShouldWarnBeforeUnload())

	// the user fixes the record and the cycle resumes
	h.coord.Update(records("a", "b2"))
	assert.Equal(t, syncclient.StateScheduled, h.coord.State())
	h.sched.Advance(debounce)
	h.transport.resolve(t, "s1", nil)
	assert.Equal(t, syncclient.StateClean, h.coord.State())
}

func TestCoordinator_RebaseAfterConflict(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("a", "mine"))
	h.sched.Advance(debounce)
	h.transport.resolve(t, "", &syncclient.APIError{Status: http.StatusConflict, Code: "records_conflict"})
	require.Equal(t, syncclient.StateRetryPending, h.coord.State())

	h.coord.Rebase(records("a", "theirs"), "s5")
	h.coord.Retry()

	req := h.transport.resolve(t, "s6", nil)
	assert.Equal(t, "s5", req.ExpectedUpdatedAt)
	assert.Equal(t, "mine", req.Records[1].ID, "local edits survive a rebase")
	assert.Equal(t, syncclient.StateClean, h.coord.State())
}

func TestCoordinator_FlushSkipsDebounce(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("a", "b"))
	h.coord.Flush()
	require.Equal(t, 1, h.transport.InFlight())

	h.sched.Advance(debounce)
	assert.Equal(t, 1, h.transport.InFlight(), "the superseded debounce timer does not fire a second save")
}

func TestCoordinator_StateListener(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("b"))
	h.sched.Advance(debounce)
	h.transport.resolve(t, "s1", nil)

	assert.Equal(t, []syncclient.State{
		syncclient.StateScheduled,
		syncclient.StateInFlight,
		syncclient.StateClean,
	}, h.states)
}

func TestCoordinator_CloseStopsTimers(t *testing.T) {
	h := newHarness(t, "s0")
	h.coord.Update(records("b"))
	h.coord.Close()
	h.sched.Advance(debounce)

	assert.Empty(t, h.transport.Sent())
	assert.True(t, h.coord.ShouldWarnBeforeUnload())
}

func TestCoordinator_LocalCopyIsIsolated(t *testing.T) {
	h := newHarness(t, "s0")
	edit := records("a", "b")
	h.coord.Update(edit)
	edit[0].ClientName = "mutated"

	assert.Equal(t, "a", h.coord.Records()[0].ClientName)
}
