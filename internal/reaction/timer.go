// Package reaction implements the reaction-time test: a five-trial batch of
// "press when it turns green" measurements whose average feeds BAC guidance.
package reaction

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mmynk/saferound/internal/models"
)

// State is the phase of the test.
type State int

const (
	// Idle waits for a press to arm the next trial.
	Idle State = iota
	// Waiting has a random delay armed; pressing now is too early.
	Waiting
	// Ready has the reaction window open.
	Ready
	// Early means the last press came before the window opened.
	Early
	// Finished holds a complete session of five trials.
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Ready:
		return "ready"
	case Early:
		return "early"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

const (
	// MinDelay and MaxDelay bound the random wait before the window opens.
	MinDelay = 2000 * time.Millisecond
	MaxDelay = 5000 * time.Millisecond

	// DefaultDisplayPause is how long a recorded score is shown before the next trial.
	DefaultDisplayPause = 600 * time.Millisecond
)

// Snapshot is a copy of the timer's observable state.
type Snapshot struct {
	State State

	// ScoreMs is the latency of the trial just recorded, 0 otherwise.
	ScoreMs int64

	// Trials holds the completed trials of the current session.
	Trials []models.ReactionTrial

	// Pausing is set while a recorded score is on display.
	Pausing bool
}

// Timer is the reaction-test state machine. It is safe for concurrent use;
// timer callbacks and presses serialize on an internal mutex.
type Timer struct {
	mu sync.Mutex

	clock    clockwork.Clock
	delay    func() time.Duration
	pause    time.Duration
	observer func(Snapshot)

	state       State
	score       int64
	trials      []models.ReactionTrial
	windowStart time.Time
	pausing     bool
	pending     clockwork.Timer

	// gen invalidates callbacks armed before the last cancel.
	gen uint64
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock drives the timer from c for both "now" and scheduling.
func WithClock(c clockwork.Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// WithDelay overrides the random delay source.
func WithDelay(f func() time.Duration) Option {
	return func(t *Timer) { t.delay = f }
}

// WithDisplayPause overrides DefaultDisplayPause.
func WithDisplayPause(d time.Duration) Option {
	return func(t *Timer) { t.pause = d }
}

// WithObserver registers f to receive a snapshot after every state change.
// f is called without the timer's lock held.
func WithObserver(f func(Snapshot)) Option {
	return func(t *Timer) { t.observer = f }
}

// RandomDelay picks a delay uniformly in [MinDelay, MaxDelay).
func RandomDelay() time.Duration {
	return MinDelay + time.Duration(rand.Int64N(int64(MaxDelay-MinDelay)))
}

// New creates an idle timer.
func New(opts ...Option) *Timer {
	t := &Timer{
		clock: clockwork.NewRealClock(),
		delay: RandomDelay,
		pause: DefaultDisplayPause,
		state: Idle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Press handles the single user action and returns the resulting snapshot.
// Presses while a score is on display, or after the session finished, change nothing.
func (t *Timer) Press() Snapshot {
	t.mu.Lock()
	switch {
	case t.pausing:
	case t.state == Idle:
		t.arm()
	case t.state == Waiting:
		t.cancel()
		t.state = Early
	case t.state == Ready:
		t.record()
	case t.state == Early:
		t.state = Idle
	}
	snap := t.snapshot()
	t.mu.Unlock()

	t.notify(snap)
	return snap
}

// Redo discards a finished session and returns to idle. It does nothing in
// any other state.
func (t *Timer) Redo() Snapshot {
	t.mu.Lock()
	if t.state == Finished {
		t.trials = nil
		t.score = 0
		t.state = Idle
	}
	snap := t.snapshot()
	t.mu.Unlock()

	t.notify(snap)
	return snap
}

// Stop cancels any armed delay or display pause. A waiting or ready trial is
// abandoned and the timer returns to idle; completed trials are kept.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.cancel()
	if t.state == Waiting || t.state == Ready {
		t.state = Idle
	}
	if t.pausing {
		t.pausing = false
		t.state = Idle
	}
	snap := t.snapshot()
	t.mu.Unlock()

	t.notify(snap)
}

// State returns the current state. While a recorded score is on display the
// state stays Ready with the window already closed; use WindowOpen to test for
// a window that will accept a press.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// WindowOpen reports whether a press now would be recorded as a trial.
func (t *Timer) WindowOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Ready && !t.pausing
}

// Snapshot returns a copy of the observable state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Average returns the mean latency of a finished session in milliseconds.
// ok is false until all five trials are complete.
func (t *Timer) Average() (ms float64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Finished || len(t.trials) != models.ReactionTrialsPerSession {
		return 0, false
	}
	var sum int64
	for _, tr := range t.trials {
		sum += tr.LatencyMs
	}
	return float64(sum) / models.ReactionTrialsPerSession, true
}

// arm must be called with t.mu held.
func (t *Timer) arm() {
	t.score = 0
	t.state = Waiting
	gen := t.gen
	t.pending = t.clock.AfterFunc(t.delay(), func() { t.open(gen) })
}

func (t *Timer) open(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != Waiting {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.state = Ready
	t.windowStart = t.clock.Now()
	snap := t.snapshot()
	t.mu.Unlock()

	t.notify(snap)
}

// record must be called with t.mu held.
func (t *Timer) record() {
	latency := t.clock.Now().Sub(t.windowStart).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	t.score = latency
	t.trials = append(t.trials, models.ReactionTrial{LatencyMs: latency, Index: len(t.trials)})

	if len(t.trials) >= models.ReactionTrialsPerSession {
		t.state = Finished
		return
	}

	t.pausing = true
	gen := t.gen
	t.pending = t.clock.AfterFunc(t.pause, func() { t.resume(gen) })
}

func (t *Timer) resume(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.pausing {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.pausing = false
	t.score = 0
	t.state = Idle
	snap := t.snapshot()
	t.mu.Unlock()

	t.notify(snap)
}

// cancel must be called with t.mu held.
func (t *Timer) cancel() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) snapshot() Snapshot {
	trials := make([]models.ReactionTrial, len(t.trials))
	copy(trials, t.trials)
	return Snapshot{
		State:   t.state,
		ScoreMs: t.score,
		Trials:  trials,
		Pausing: t.pausing,
	}
}

func (t *Timer) notify(s Snapshot) {
	if t.observer != nil {
		t.observer(s)
	}
}
