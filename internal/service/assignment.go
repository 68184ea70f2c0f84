package service

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"clinichat/config"
	"clinichat/internal/domain"
)

// candidatesLocked returns the agents eligible for a session, ordered by
// ascending load ratio with average response time as the tie-breaker.
// The ordering is deterministic for a fixed registry snapshot.
func (s *LiveChatServiceImpl) candidatesLocked(sess *domain.ChatSession) []*domain.AgentStatus {
	var candidates []*domain.AgentStatus
	for _, agent := range s.agents {
		if !agentCanAccept(agent) {
			continue
		}
		if agent.ClinicID != "" && agent.ClinicID != sess.ClinicID {
			continue
		}
		candidates = append(candidates, agent)
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := candidates[i].LoadRatio(), candidates[j].LoadRatio()
		if ri != rj {
			return ri < rj
		}
		if candidates[i].AvgResponseTime != candidates[j].AvgResponseTime {
			return candidates[i].AvgResponseTime < candidates[j].AvgResponseTime
		}
		return candidates[i].ID < candidates[j].ID
	})

	return candidates
}

// assignBestCandidateLocked binds the least-loaded eligible agent to the
// session, or returns nil when no agent can take it. Caller holds the
// state lock and emits the assignment notification after unlocking.
func (s *LiveChatServiceImpl) assignBestCandidateLocked(sess *domain.ChatSession) *domain.AgentStatus {
	candidates := s.candidatesLocked(sess)
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	s.bindAgentLocked(sess, best)
	if sess.Status == domain.ChatSessionStatusWaiting {
		sess.Status = domain.ChatSessionStatusActive
	}

	return best
}

func (s *LiveChatServiceImpl) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(queueSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepQueue()
		case <-s.stopCh:
			return
		}
	}
}

type assignedPair struct {
	session *domain.ChatSession
	agent   *domain.AgentStatus
}

// sweepQueue is the periodic queue pass: refresh wait times, apply the
// configured over-wait policy and retry auto-assignment in FIFO order.
func (s *LiveChatServiceImpl) sweepQueue() {
	now := time.Now()

	s.mu.Lock()

	startPositions := make(map[string]int, len(s.queue))
	for _, entry := range s.queue {
		startPositions[entry.SessionID] = entry.Position
		entry.WaitTime = now.Sub(entry.EnqueuedAt)
		entry.EstimatedWait = time.Duration(entry.Position) * averageHandleTime
	}

	var waitEscalations []domain.QueueEntry
	var timedOutIDs []string
	for _, entry := range s.queue {
		if entry.WaitTime <= s.cfg.MaxWaitTime {
			continue
		}
		if s.cfg.WaitTimeoutAction == config.WaitTimeoutTimeout {
			timedOutIDs = append(timedOutIDs, entry.SessionID)
			continue
		}
		if s.cfg.EscalationEnabled && !entry.WaitEscalated {
			entry.WaitEscalated = true
			if sess, ok := s.sessions[entry.SessionID]; ok && sess.Priority == domain.ChatPriorityNormal {
				sess.Priority = domain.ChatPriorityHigh
				entry.Priority = sess.Priority
			}
			waitEscalations = append(waitEscalations, *entry)
		}
	}

	var timedOut []*domain.ChatSession
	for _, id := range timedOutIDs {
		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		s.dequeueLocked(id)
		sess.Status = domain.ChatSessionStatusTimeout
		endedAt := now
		sess.EndedAt = &endedAt
		sess.LastActivityAt = now
		timedOut = append(timedOut, cloneSession(sess))
	}

	var assigned []assignedPair
	if s.cfg.AutoAssignEnabled {
		queued := make([]string, 0, len(s.queue))
		for _, entry := range s.queue {
			queued = append(queued, entry.SessionID)
		}
		for _, id := range queued {
			sess, ok := s.sessions[id]
			if !ok {
				continue
			}
			agent := s.assignBestCandidateLocked(sess)
			if agent == nil {
				continue
			}
			s.dequeueLocked(id)
			assigned = append(assigned, assignedPair{
				session: cloneSession(sess),
				agent:   cloneAgent(agent),
			})
		}
	}

	var moved []domain.QueueEntry
	for _, entry := range s.queue {
		if startPositions[entry.SessionID] != entry.Position {
			moved = append(moved, *entry)
		}
	}
	s.mu.Unlock()

	for _, sess := range timedOut {
		s.persistSession(sess)
	}
	for _, pair := range assigned {
		s.persistSession(pair.session)
	}

	if s.metrics != nil {
		for _, pair := range assigned {
			s.metrics.AssignmentsTotal.Inc()
			s.metrics.TimeToAssignment.Observe(now.Sub(pair.session.StartedAt).Seconds())
		}
		for range timedOut {
			s.metrics.SessionsEnded.WithLabelValues(string(domain.ChatSessionStatusTimeout)).Inc()
		}
		if len(assigned) > 0 || len(timedOut) > 0 {
			s.updateGauges()
		}
	}

	n := s.getNotifier()
	if n == nil {
		return
	}
	for i := range waitEscalations {
		n.WaitTimeEscalated(&waitEscalations[i])
	}
	for _, sess := range timedOut {
		n.SessionEnded(sess)
	}
	for _, pair := range assigned {
		n.SessionAssigned(pair.session, pair.agent)
		s.logger.Info("сессия назначена оператору",
			zap.String("session_id", pair.session.ID),
			zap.String("agent_id", pair.agent.ID))
	}
	for i := range moved {
		n.QueuePositionChanged(&moved[i])
	}
}
