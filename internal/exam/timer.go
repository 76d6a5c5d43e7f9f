package exam

import (
	"context"
	"sync"
	"time"
)

// Clock is the engine's source of time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time                            { return time.Now() }
func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Countdown is the time left before the deadline, never negative.
// It is recomputed from wall-clock time on every call so missed ticks cannot drift it.
func Countdown(now, startedAt time.Time, allotted time.Duration) time.Duration {
	left := allotted - now.Sub(startedAt)
	if left < 0 {
		return 0
	}
	return left
}

type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateExpired
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateExpired:
		return "expired"
	case StateSubmitted:
		return "submitted"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s == StateExpired || s == StateSubmitted }

// Session drives one attempt's countdown. The first of Submit or the expiry timer to
// reach a terminal state finalizes; the other becomes a no-op returning the same record.
type Session struct {
	engine    *Engine
	attemptID string

	mu     sync.Mutex
	state  State
	timer  Timer
	result Attempt
	err    error
	done   chan struct{}
	onDone func(*Session)
}

func newSession(e *Engine, attemptID string) *Session {
	return &Session{engine: e, attemptID: attemptID, done: make(chan struct{})}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result is the finalized attempt once Done is closed.
func (s *Session) Result() (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// start moves NotStarted -> Running and arms the expiry timer for the time left.
func (s *Session) start(a Attempt) {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return
	}
	if a.Finalized() {
		s.state = StateSubmitted
		if a.TimeTakenSeconds != nil && *a.TimeTakenSeconds >= a.AllottedSeconds {
			s.state = StateExpired
		}
		s.result = a
		s.mu.Unlock()
		s.finish()
		return
	}
	s.state = StateRunning
	left := Countdown(s.engine.clock.Now(), a.StartedAt, a.Allotted())
	s.mu.Unlock()

	if left <= 0 {
		s.expire()
		return
	}
	t := s.engine.clock.AfterFunc(left, s.expire)
	s.mu.Lock()
	if s.state == StateRunning {
		s.timer = t
	} else {
		t.Stop()
	}
	s.mu.Unlock()
}

func (s *Session) expire() {
	if !s.transition(StateExpired) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.engine.timeout+time.Second)
	defer cancel()
	a, err := s.engine.finalize(ctx, s.attemptID, TriggerExpiry)
	s.settle(a, err)
}

// Submit finalizes on user action. After expiry it returns the expired record.
func (s *Session) Submit(ctx context.Context) (Attempt, error) {
	if !s.transition(StateSubmitted) {
		select {
		case <-s.done:
			return s.Result()
		case <-ctx.Done():
			return Attempt{}, ctx.Err()
		}
	}
	a, err := s.engine.finalize(ctx, s.attemptID, TriggerSubmit)
	s.settle(a, err)
	return a, err
}

func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return false
	}
	s.state = to
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return true
}

func (s *Session) settle(a Attempt, err error) {
	s.mu.Lock()
	s.result, s.err = a, err
	s.mu.Unlock()
	s.finish()
}

func (s *Session) finish() {
	close(s.done)
	if s.onDone != nil {
		s.onDone(s)
	}
}

// stop disarms the timer without finalizing; the attempt stays Running in the store.
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Watcher keeps one Session per live attempt so expiry fires server-side.
type Watcher struct {
	engine *Engine

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewWatcher(e *Engine) *Watcher {
	return &Watcher{engine: e, sessions: map[string]*Session{}}
}

// Track returns the attempt's session, arming it on first sight.
func (w *Watcher) Track(a Attempt) *Session {
	w.mu.Lock()
	if s, ok := w.sessions[a.ID]; ok {
		w.mu.Unlock()
		return s
	}
	s := newSession(w.engine, a.ID)
	s.onDone = w.forget
	w.sessions[a.ID] = s
	w.mu.Unlock()

	s.start(a)
	return s
}

func (w *Watcher) forget(s *Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sessions[s.attemptID] == s {
		delete(w.sessions, s.attemptID)
	}
}

// Submit routes through the attempt's session when one is tracked.
func (w *Watcher) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	w.mu.Lock()
	s, ok := w.sessions[attemptID]
	w.mu.Unlock()
	if ok {
		return s.Submit(ctx)
	}
	return w.engine.SubmitAttempt(ctx, attemptID)
}

// Len is the number of live sessions.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

// Close disarms every timer. Attempts stay in progress and are expired on next access.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, s := range w.sessions {
		s.stop()
		delete(w.sessions, id)
	}
}
