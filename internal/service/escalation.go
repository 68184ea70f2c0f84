package service

import (
	"strings"
	"time"

	"clinichat/internal/domain"
)

// Escalation trigger reasons, reported in SESSION_ESCALATED frames and
// the escalation metrics.
const (
	EscalationReasonSentiment  = "negative_sentiment"
	EscalationReasonEmergency  = "emergency_keyword"
	EscalationReasonUnassigned = "unassigned_messages"
	EscalationReasonWaitTime   = "wait_time_exceeded"
)

const (
	sentimentConfidenceThreshold = 0.7
	unassignedMessageLimit       = 10
)

// emergencyKeywords triggers immediate escalation on a case-insensitive
// substring match. Fixed list, not configurable at runtime.
var emergencyKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"can't breathe",
	"cannot breathe",
	"shortness of breath",
	"severe bleeding",
	"unconscious",
	"heart attack",
	"stroke",
	"seizure",
	"overdose",
	"suicide",
	"severe allergic",
	"anaphyla",
	"emergency",
}

// negativeWords и positiveWords — лексикон для грубой оценки тональности.
var negativeWords = []string{
	"angry", "furious", "terrible", "awful", "horrible", "worst",
	"unacceptable", "useless", "disappointed", "frustrated", "complaint",
	"ridiculous", "waste", "never again", "rude", "incompetent",
}

var positiveWords = []string{
	"thank", "thanks", "great", "good", "helpful", "appreciate",
	"excellent", "wonderful", "perfect", "pleased",
}

// analyzeSentiment is a lexicon scorer: confidence grows with the number
// of matched words and caps at 0.95.
func analyzeSentiment(content string) (domain.Sentiment, float64) {
	lower := strings.ToLower(content)

	negative := 0
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			negative++
		}
	}
	positive := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			positive++
		}
	}

	switch {
	case negative > positive:
		return domain.SentimentNegative, confidence(negative - positive)
	case positive > negative:
		return domain.SentimentPositive, confidence(positive - negative)
	default:
		return domain.SentimentNeutral, 0.5
	}
}

func confidence(matches int) float64 {
	c := 0.5 + 0.25*float64(matches)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

func containsEmergencyKeyword(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type escalationResult struct {
	reason string
	moved  []domain.QueueEntry
}

// checkEscalationLocked evaluates one inbound customer message against
// the escalation triggers. Idempotent per session: once the flag is set
// the monitor takes no further action here. An escalated session leaves
// the queue so operators handle it directly. Caller holds the state lock.
func (s *LiveChatServiceImpl) checkEscalationLocked(sess *domain.ChatSession, msg *domain.ChatMessage) *escalationResult {
	if sess.EscalationTriggered {
		return nil
	}

	var reason string
	switch {
	case containsEmergencyKeyword(msg.Content):
		reason = EscalationReasonEmergency
		sess.IsEmergency = true
		sess.Priority = domain.ChatPriorityEmergency
	case msg.Sentiment == domain.SentimentNegative && msg.SentimentScore > sentimentConfidenceThreshold:
		reason = EscalationReasonSentiment
	case !sess.IsAgentAssigned && sess.MessageCount > unassignedMessageLimit:
		reason = EscalationReasonUnassigned
	case sess.QueuePosition != nil && time.Since(sess.StartedAt) > s.cfg.MaxWaitTime:
		reason = EscalationReasonWaitTime
	default:
		return nil
	}

	now := time.Now()
	sess.EscalationTriggered = true
	sess.EscalatedAt = &now
	if sess.Priority == domain.ChatPriorityNormal {
		sess.Priority = domain.ChatPriorityUrgent
	}
	moved := s.dequeueLocked(sess.ID)
	sess.Status = domain.ChatSessionStatusEscalated

	return &escalationResult{reason: reason, moved: moved}
}
