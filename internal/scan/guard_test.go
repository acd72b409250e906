package scan

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newGuardAt(start time.Time) (*Guard, *time.Time) {
	now := start
	g := NewGuard()
	g.now = func() time.Time { return now }
	return g, &now
}

func TestGuardRepeatWindow(t *testing.T) {
	g, now := newGuardAt(time.Unix(1000, 0))

	assert.True(t, g.Begin("sess-1", "ABCD1234"))
	g.Finish("sess-1", "ABCD1234", true)

	// Same code one second later is suppressed.
	*now = now.Add(time.Second)
	assert.False(t, g.Begin("sess-1", "ABCD1234"))

	// A different code goes through immediately.
	assert.True(t, g.Begin("sess-1", "ZZZZ9999"))
	g.Finish("sess-1", "ZZZZ9999", true)

	// After the window the original code is allowed again.
	*now = now.Add(repeatWindow)
	assert.True(t, g.Begin("sess-1", "ABCD1234"))
}

func TestGuardInFlightBlocksEverything(t *testing.T) {
	g, _ := newGuardAt(time.Unix(1000, 0))

	assert.True(t, g.Begin("sess-1", "ABCD1234"))
	assert.False(t, g.Begin("sess-1", "ZZZZ9999"))
	g.Finish("sess-1", "ABCD1234", true)
	assert.True(t, g.Begin("sess-1", "ZZZZ9999"))
}

func TestGuardFailureClearsCodeAfterDelay(t *testing.T) {
	g, now := newGuardAt(time.Unix(1000, 0))

	assert.True(t, g.Begin("sess-1", "ABCD1234"))
	g.Finish("sess-1", "ABCD1234", false)

	// Inside the repeat window the failed code is still suppressed.
	*now = now.Add(time.Second)
	assert.False(t, g.Begin("sess-1", "ABCD1234"))

	// Once the retry-clear elapses, the same tag may be rescanned.
	*now = now.Add(retryClear)
	assert.True(t, g.Begin("sess-1", "ABCD1234"))
}

func TestGuardSessionsAreIndependent(t *testing.T) {
	g, _ := newGuardAt(time.Unix(1000, 0))

	assert.True(t, g.Begin("sess-1", "ABCD1234"))
	assert.True(t, g.Begin("sess-2", "ABCD1234"))
}

func TestGuardEvictsIdleSessions(t *testing.T) {
	g, now := newGuardAt(time.Unix(1000, 0))

	for i := 0; i < 100; i++ {
		session := fmt.Sprintf("sess-%d", i)
		assert.True(t, g.Begin(session, "ABCD1234"))
		g.Finish(session, "ABCD1234", true)
	}
	assert.Len(t, g.sessions, 100)

	// Once every window has elapsed the next scan sweeps them all out.
	*now = now.Add(retryClear + time.Second)
	assert.True(t, g.Begin("sess-new", "ABCD1234"))
	assert.Len(t, g.sessions, 1)
}

func TestGuardKeepsLiveSessionsOnSweep(t *testing.T) {
	g, now := newGuardAt(time.Unix(1000, 0))

	// In flight, inside the repeat window, and pending retry-clear.
	assert.True(t, g.Begin("sess-busy", "AAAA1111"))
	assert.True(t, g.Begin("sess-recent", "BBBB2222"))
	g.Finish("sess-recent", "BBBB2222", true)
	assert.True(t, g.Begin("sess-failed", "CCCC3333"))
	g.Finish("sess-failed", "CCCC3333", false)

	*now = now.Add(repeatWindow + 500*time.Millisecond)
	assert.False(t, g.Begin("sess-busy", "DDDD4444"))
	assert.Len(t, g.sessions, 2)

	_, inFlight := g.sessions["sess-busy"]
	assert.True(t, inFlight)
	_, pendingClear := g.sessions["sess-failed"]
	assert.True(t, pendingClear)
}

func TestGuardReset(t *testing.T) {
	g, _ := newGuardAt(time.Unix(1000, 0))

	assert.True(t, g.Begin("sess-1", "ABCD1234"))
	g.Reset("sess-1")
	assert.True(t, g.Begin("sess-1", "ABCD1234"))
}
