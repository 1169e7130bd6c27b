package session

import (
	"log/slog"
	"sync"
)

// Event is delivered to subscribers after every applied dispatch.
type Event struct {
	Action Action
	State  State
	Epoch  uint64
}

// Token captures the session epoch at the start of an asynchronous
// operation. Results dispatched with a stale token are dropped.
type Token struct {
	epoch uint64
}

// Store owns the current session snapshot. Dispatches are applied one at a
// time; snapshots handed out are immutable and safe to share.
type Store struct {
	mu        sync.Mutex
	state     State
	epoch     uint64
	discarded uint64

	// notifyMu keeps subscriber delivery in dispatch order.
	notifyMu sync.Mutex
	subsMu   sync.RWMutex
	subs     map[int]func(Event)
	nextSub  int

	logger *slog.Logger
}

// NewStore returns a store holding the initial state.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state:  Initial(),
		subs:   make(map[int]func(Event)),
		logger: logger.With(slog.String("component", "session")),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns a token for the current epoch.
func (s *Store) Token() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Token{epoch: s.epoch}
}

// Discarded returns how many stale results DispatchIf has dropped.
func (s *Store) Discarded() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// Dispatch applies a and returns the resulting snapshot. A nil action
// returns the current snapshot and notifies nobody.
func (s *Store) Dispatch(a Action) State {
	if a == nil {
		return s.Snapshot()
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := s.apply(a)
	ev := Event{Action: a, State: next, Epoch: s.epoch}
	s.mu.Unlock()

	s.notify(ev)
	return next
}

// DispatchIf applies a only if tok still matches the current epoch. It
// reports whether the action was applied; a nil action never is.
func (s *Store) DispatchIf(tok Token, a Action) bool {
	if a == nil {
		return false
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if tok.epoch != s.epoch {
		s.discarded++
		s.mu.Unlock()
		s.logger.Debug("discarding stale result",
			slog.String("action", a.Type()),
			slog.Uint64("token_epoch", tok.epoch),
		)
		return false
	}
	next := s.apply(a)
	ev := Event{Action: a, State: next, Epoch: s.epoch}
	s.mu.Unlock()

	s.notify(ev)
	return true
}

// Update builds an action from the current snapshot and applies it in the
// same serialized step, so read-modify-write callers cannot interleave. fn
// runs with the store locked and must not call back into the store. A nil
// action leaves the state untouched and notifies nobody.
func (s *Store) Update(fn func(State) Action) (State, Action) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	a := fn(s.state)
	if a == nil {
		cur := s.state
		s.mu.Unlock()
		return cur, nil
	}
	next := s.apply(a)
	ev := Event{Action: a, State: next, Epoch: s.epoch}
	s.mu.Unlock()

	s.notify(ev)
	return next, a
}

// Subscribe registers fn to be called after every dispatch. Subscribers run
// synchronously and must not dispatch. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// apply must be called with mu held.
func (s *Store) apply(a Action) State {
	switch a.(type) {
	case ClearAllData, SetSessionID:
		s.epoch++
	}
	s.state = Apply(s.state, a)
	return s.state
}

func (s *Store) notify(ev Event) {
	s.subsMu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
