package domain

import (
	"time"
)

// ChatSessionStatus represents the status of a live chat session
type ChatSessionStatus string

const (
	ChatSessionStatusWaiting     ChatSessionStatus = "waiting"
	ChatSessionStatusActive      ChatSessionStatus = "active"
	ChatSessionStatusEscalated   ChatSessionStatus = "escalated"
	ChatSessionStatusTransferred ChatSessionStatus = "transferred"
	ChatSessionStatusOnHold      ChatSessionStatus = "on_hold"
	ChatSessionStatusCompleted   ChatSessionStatus = "completed"
	ChatSessionStatusCancelled   ChatSessionStatus = "cancelled"
	ChatSessionStatusTimeout     ChatSessionStatus = "timeout"
	ChatSessionStatusAbandoned   ChatSessionStatus = "abandoned"
)

// IsTerminal reports whether no further status transition is allowed
func (s ChatSessionStatus) IsTerminal() bool {
	switch s {
	case ChatSessionStatusCompleted, ChatSessionStatusCancelled,
		ChatSessionStatusTimeout, ChatSessionStatusAbandoned:
		return true
	}
	return false
}

// ChatPriority represents the handling priority of a session
type ChatPriority string

const (
	ChatPriorityNormal    ChatPriority = "normal"
	ChatPriorityHigh      ChatPriority = "high"
	ChatPriorityUrgent    ChatPriority = "urgent"
	ChatPriorityEmergency ChatPriority = "emergency"
)

// MessageType represents the type of a chat message
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
	MessageTypeTyping MessageType = "typing"
	MessageTypeJoin   MessageType = "join"
	MessageTypeLeave  MessageType = "leave"
)

// SenderRole identifies who produced a message
type SenderRole string

const (
	SenderRoleCustomer SenderRole = "customer"
	SenderRoleAgent    SenderRole = "agent"
	SenderRoleSystem   SenderRole = "system"
)

// DeliveryStatus tracks message delivery; the only mutation allowed on a
// message after creation.
type DeliveryStatus string

const (
	DeliveryStatusSending   DeliveryStatus = "sending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// Sentiment is the derived tone of a message
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ChatSession represents one conversation between a customer and,
// optionally, a support agent. queuePosition is non-nil iff the session
// is WAITING in the queue; IsAgentAssigned implies AgentID is non-empty.
type ChatSession struct {
	ID                  string            `json:"id" db:"id"`
	CustomerName        string            `json:"customer_name,omitempty" db:"customer_name"`
	CustomerContact     string            `json:"customer_contact,omitempty" db:"customer_contact"`
	ClinicID            string            `json:"clinic_id,omitempty" db:"clinic_id"`
	DoctorID            string            `json:"doctor_id,omitempty" db:"doctor_id"`
	ServiceID           string            `json:"service_id,omitempty" db:"service_id"`
	Status              ChatSessionStatus `json:"status" db:"status"`
	Priority            ChatPriority      `json:"priority" db:"priority"`
	QueuePosition       *int              `json:"queue_position,omitempty" db:"queue_position"`
	IsEmergency         bool              `json:"is_emergency" db:"is_emergency"`
	IsAgentAssigned     bool              `json:"is_agent_assigned" db:"is_agent_assigned"`
	AgentID             string            `json:"agent_id,omitempty" db:"agent_id"`
	AgentName           string            `json:"agent_name,omitempty" db:"agent_name"`
	MessageCount        int               `json:"message_count" db:"message_count"`
	StartedAt           time.Time         `json:"started_at" db:"started_at"`
	FirstResponseAt     *time.Time        `json:"first_response_at,omitempty" db:"first_response_at"`
	EndedAt             *time.Time        `json:"ended_at,omitempty" db:"ended_at"`
	LastActivityAt      time.Time         `json:"last_activity_at" db:"last_activity_at"`
	EscalationTriggered bool              `json:"escalation_triggered" db:"escalation_triggered"`
	EscalatedAt         *time.Time        `json:"escalated_at,omitempty" db:"escalated_at"`
}

// ChatMessage represents one unit of communication within a session
type ChatMessage struct {
	ID             string         `json:"id" db:"id"`
	SessionID      string         `json:"session_id" db:"session_id"`
	Content        string         `json:"content" db:"content"`
	Type           MessageType    `json:"message_type" db:"message_type"`
	SenderID       string         `json:"sender_id" db:"sender_id"`
	SenderName     string         `json:"sender_name,omitempty" db:"sender_name"`
	SenderRole     SenderRole     `json:"sender_role" db:"sender_role"`
	DeliveryStatus DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	Attachments    []string       `json:"attachments,omitempty" db:"attachments"`
	Sentiment      Sentiment      `json:"sentiment,omitempty" db:"sentiment"`
	SentimentScore float64        `json:"sentiment_score,omitempty" db:"sentiment_score"`
	SentAt         time.Time      `json:"sent_at" db:"sent_at"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"`
	ReadAt         *time.Time     `json:"read_at,omitempty" db:"read_at"`
}

// StartChatDTO carries the customer's start-session request
type StartChatDTO struct {
	CustomerName    string `json:"customer_name"`
	CustomerContact string `json:"customer_contact"`
	ClinicID        string `json:"clinic_id"`
	DoctorID        string `json:"doctor_id"`
	ServiceID       string `json:"service_id"`
	Topic           string `json:"topic"`
}

// SendMessageDTO carries one inbound chat message
type SendMessageDTO struct {
	SessionID   string      `json:"session_id" binding:"required"`
	Content     string      `json:"content" binding:"required"`
	Type        MessageType `json:"message_type"`
	SenderID    string      `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	SenderRole  SenderRole  `json:"sender_role"`
	Attachments []string    `json:"attachments"`
}

// ChatSessionFilter represents filters for querying persisted sessions
type ChatSessionFilter struct {
	ClinicID *string            `json:"clinic_id"`
	AgentID  *string            `json:"agent_id"`
	Status   *ChatSessionStatus `json:"status"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// ChatMessageFilter represents filters for querying persisted messages
type ChatMessageFilter struct {
	SessionID *string     `json:"session_id"`
	SenderID  *string     `json:"sender_id"`
	Type      *MessageType `json:"message_type"`
	Limit     int         `json:"limit"`
	Offset    int         `json:"offset"`
}
