package service

import (
	"time"

	"clinichat/internal/domain"
)

// averageHandleTime is the fixed constant behind the wait estimate:
// estimated wait = queue position × averageHandleTime. A heuristic, not
// a promise to the customer.
const averageHandleTime = 4 * time.Minute

// enqueueLocked appends a queue entry at the tail and stamps the session
// with its 1-based position. Caller holds the state lock.
func (s *LiveChatServiceImpl) enqueueLocked(sess *domain.ChatSession, topic string) *domain.QueueEntry {
	position := len(s.queue) + 1
	entry := &domain.QueueEntry{
		SessionID:     sess.ID,
		Position:      position,
		CustomerName:  sess.CustomerName,
		Priority:      sess.Priority,
		EstimatedWait: time.Duration(position) * averageHandleTime,
		ClinicID:      sess.ClinicID,
		Department:    topic,
		EnqueuedAt:    time.Now(),
	}
	s.queue = append(s.queue, entry)

	pos := position
	sess.QueuePosition = &pos

	return entry
}

// dequeueLocked removes the entry for sessionID and renumbers the tail so
// positions stay a contiguous 1..N sequence. Returns copies of the
// entries whose position changed. Caller holds the state lock.
func (s *LiveChatServiceImpl) dequeueLocked(sessionID string) []domain.QueueEntry {
	idx := -1
	for i, entry := range s.queue {
		if entry.SessionID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	s.queue = append(s.queue[:idx], s.queue[idx+1:]...)

	var moved []domain.QueueEntry
	for i := idx; i < len(s.queue); i++ {
		entry := s.queue[i]
		entry.Position = i + 1
		entry.EstimatedWait = time.Duration(entry.Position) * averageHandleTime
		if sess, ok := s.sessions[entry.SessionID]; ok && sess.QueuePosition != nil {
			*sess.QueuePosition = entry.Position
		}
		moved = append(moved, *entry)
	}

	if sess, ok := s.sessions[sessionID]; ok {
		sess.QueuePosition = nil
	}

	return moved
}

// QueueSnapshot returns the waiting list with up-to-date accumulated
// wait times.
func (s *LiveChatServiceImpl) QueueSnapshot() []domain.QueueEntry {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.QueueEntry, 0, len(s.queue))
	for _, entry := range s.queue {
		e := *entry
		e.WaitTime = now.Sub(entry.EnqueuedAt)
		entries = append(entries, e)
	}
	return entries
}
