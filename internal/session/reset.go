package session

import (
	"time"

	"github.com/rs/zerolog/log"
)

// The deferred reset gives the user a moment to see the confirmation before
// the session clears. It is armed with a due time and a generation counter;
// the timer re-checks both under the session lock, so a reset fires at most
// once and never after the session was reused or reset by other means.

// armResetLocked schedules the deferred reset. Caller holds s.mu.
func (m *Manager) armResetLocked(s *Session) time.Time {
	delay := time.Duration(m.resetDelay.Load())
	s.resetGeneration++
	s.resetArmed = true
	s.resetDue = m.now().Add(delay)

	generation := s.resetGeneration
	sessionID := s.ID
	time.AfterFunc(delay, func() {
		m.fireReset(sessionID, generation)
	})

	m.emit(s.ID, EventResetScheduled)
	log.Debug().
		Str("session_id", s.ID).
		Time("due", s.resetDue).
		Msg("session reset scheduled")
	return s.resetDue
}

// disarmResetLocked cancels any armed reset by invalidating its generation.
// Caller holds s.mu.
func (m *Manager) disarmResetLocked(s *Session) {
	if s.resetArmed {
		s.resetArmed = false
		s.resetGeneration++
	}
}

// fireReset runs when a timer elapses. The armed flag and generation decide
// whether this particular timer still owns the reset.
func (m *Manager) fireReset(sessionID string, generation uint64) {
	s, err := m.get(sessionID)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.resetArmed || s.resetGeneration != generation {
		return
	}
	if m.now().Before(s.resetDue) {
		return
	}
	m.resetLocked(s)
}
