package scan

import (
	"sync"
	"time"
)

const (
	// Minimum gap before the same code may trigger another validation.
	repeatWindow = 2 * time.Second
	// After a failed validation the code is forgotten once this elapses,
	// so a rescan of the same tag can retry.
	retryClear = 3 * time.Second
)

type guardState struct {
	lastCode  string
	lastAt    time.Time
	inFlight  bool
	clearCode string
	clearAt   time.Time
}

// Guard suppresses duplicate scans per session: same code inside the repeat
// window, or any scan while a validation is in flight.
type Guard struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]*guardState
}

func NewGuard() *Guard {
	return &Guard{now: time.Now, sessions: map[string]*guardState{}}
}

// prune drops sessions whose windows have all elapsed. Such a session is
// indistinguishable from a fresh one, so forgetting it changes nothing.
func (g *Guard) prune(now time.Time) {
	for session, s := range g.sessions {
		if s.inFlight {
			continue
		}
		if now.Sub(s.lastAt) < repeatWindow {
			continue
		}
		if s.clearCode != "" && now.Before(s.clearAt) {
			continue
		}
		delete(g.sessions, session)
	}
}

func (g *Guard) state(session string) *guardState {
	s, ok := g.sessions[session]
	if !ok {
		s = &guardState{}
		g.sessions[session] = s
	}
	return s
}

// Begin reports whether a validation for code may start. When it returns
// true the caller owns the in-flight slot and must call Finish.
func (g *Guard) Begin(session, code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)
	s := g.state(session)

	// Honor the pending retry-clear from a previous failure.
	if s.clearCode != "" && s.clearCode == s.lastCode && !now.Before(s.clearAt) {
		s.lastCode = ""
		s.clearCode = ""
	}

	if s.inFlight {
		return false
	}
	if s.lastCode == code && now.Sub(s.lastAt) < repeatWindow {
		return false
	}

	s.lastCode = code
	s.lastAt = now
	s.inFlight = true
	return true
}

// Finish releases the in-flight slot. A failure schedules the retry-clear
// so the same tag can be rescanned shortly after.
func (g *Guard) Finish(session, code string, success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.state(session)
	s.inFlight = false
	if !success {
		s.clearCode = code
		s.clearAt = g.now().Add(retryClear)
	}
}

// Reset drops all scan state for the session.
func (g *Guard) Reset(session string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, session)
}
