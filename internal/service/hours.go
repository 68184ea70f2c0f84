package service

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"clinichat/internal/domain"
)

// withinWorkingHours evaluates the configured daily window in the
// configured timezone. An unparseable window keeps chat open around the
// clock.
func (s *LiveChatServiceImpl) withinWorkingHours(now time.Time) bool {
	local := now.In(s.loc)

	start, err := time.Parse("15:04", s.cfg.WorkingHoursStart)
	if err != nil {
		return true
	}
	end, err := time.Parse("15:04", s.cfg.WorkingHoursEnd)
	if err != nil {
		return true
	}

	minutes := local.Hour()*60 + local.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin == endMin {
		return true
	}
	// Window crossing midnight, e.g. 22:00-06:00
	if startMin > endMin {
		return minutes >= startMin || minutes < endMin
	}
	return minutes >= startMin && minutes < endMin
}

// IsOpen reports the current operating-hours state.
func (s *LiveChatServiceImpl) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

func (s *LiveChatServiceImpl) hoursLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(hoursCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkOperatingHours(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// checkOperatingHours flips the gate on a window boundary. The broadcast
// fires exactly once per transition; existing sessions are untouched.
// On opening, sessions that arrived outside working hours are queued.
func (s *LiveChatServiceImpl) checkOperatingHours(now time.Time) {
	open := s.withinWorkingHours(now)

	s.mu.Lock()
	if open == s.open {
		s.mu.Unlock()
		return
	}
	s.open = open

	var queuedPositions []domain.QueueEntry
	var notices []*domain.ChatMessage
	if open && s.cfg.QueueEnabled {
		queued := make(map[string]bool, len(s.queue))
		for _, entry := range s.queue {
			queued[entry.SessionID] = true
		}
		var waiting []*domain.ChatSession
		for _, sess := range s.sessions {
			if sess.Status == domain.ChatSessionStatusWaiting && !queued[sess.ID] {
				waiting = append(waiting, sess)
			}
		}
		sort.Slice(waiting, func(i, j int) bool {
			return waiting[i].StartedAt.Before(waiting[j].StartedAt)
		})
		for _, sess := range waiting {
			entry := s.enqueueLocked(sess, "")
			queuedPositions = append(queuedPositions, *entry)
			notices = append(notices, s.systemMessageLocked(sess, s.cfg.GreetingMessage))
		}
	}
	s.mu.Unlock()

	message := s.cfg.GreetingMessage
	if !open {
		message = s.cfg.OfflineMessage
	}

	for _, notice := range notices {
		s.persistMessage(notice)
	}

	if n := s.getNotifier(); n != nil {
		n.OperatingStatusChanged(open, message)
		for i := range queuedPositions {
			n.QueuePositionChanged(&queuedPositions[i])
		}
		for _, notice := range notices {
			n.SystemMessage(notice.SessionID, notice)
		}
	}

	s.logger.Info("статус рабочего времени изменился",
		zap.Bool("open", open),
		zap.Int("queued_on_open", len(queuedPositions)))
}
