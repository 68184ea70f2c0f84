package websocket

import (
	"encoding/json"
	"time"

	"clinichat/internal/domain"
)

// Frame is the wire envelope: a type discriminator plus a payload whose
// shape depends on the type.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound frame types
const (
	FrameStartChat       = "START_CHAT"
	FrameSendMessage     = "SEND_MESSAGE"
	FrameJoinAsAgent     = "JOIN_AS_AGENT"
	FrameAgentAssignment = "AGENT_ASSIGNMENT"
	FrameTypingIndicator = "TYPING_INDICATOR"
	FrameEndChat         = "END_CHAT"
	FrameTransferSession = "TRANSFER_SESSION"
	FrameRequestHistory  = "REQUEST_HISTORY"
	FramePing            = "PING"
)

// Outbound frame types
const (
	FrameConnectionEstablished  = "CONNECTION_ESTABLISHED"
	FrameChatStarted            = "CHAT_STARTED"
	FrameNewMessage             = "NEW_MESSAGE"
	FrameAgentAssigned          = "AGENT_ASSIGNED"
	FrameAgentJoined            = "AGENT_JOINED"
	FrameChatEnded              = "CHAT_ENDED"
	FrameSessionEscalated       = "SESSION_ESCALATED"
	FrameWaitTimeEscalation     = "WAIT_TIME_ESCALATION"
	FrameQueuePosition          = "QUEUE_POSITION"
	FrameCustomerDisconnected   = "CUSTOMER_DISCONNECTED"
	FrameChatHistory            = "CHAT_HISTORY"
	FrameOperatingStatusChanged = "OPERATING_STATUS_CHANGED"
	FrameHeartbeat              = "HEARTBEAT"
	FramePong                   = "PONG"
	FrameError                  = "ERROR"
)

// Error codes carried in ERROR frames
const (
	ErrCodeInvalidFormat     = "INVALID_MESSAGE_FORMAT"
	ErrCodeUnknownType       = "UNKNOWN_MESSAGE_TYPE"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeAgentUnavailable  = "AGENT_UNAVAILABLE"
	ErrCodeSessionStartError = "SESSION_START_ERROR"
	ErrCodeMessageError      = "MESSAGE_ERROR"
	ErrCodeAgentJoinError    = "AGENT_JOIN_ERROR"
	ErrCodeAssignmentError   = "ASSIGNMENT_ERROR"
	ErrCodeSessionEndError   = "SESSION_END_ERROR"
)

type AgentAssignmentPayload struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
}

type TypingPayload struct {
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id"`
	UserName  string            `json:"user_name"`
	Role      domain.SenderRole `json:"role"`
	IsTyping  bool              `json:"is_typing"`
}

type EndChatPayload struct {
	SessionID string            `json:"session_id"`
	EndedBy   domain.SenderRole `json:"ended_by"`
}

type TransferPayload struct {
	SessionID string `json:"session_id"`
	ToAgentID string `json:"to_agent_id"`
}

type HistoryPayload struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

type ChatStartedPayload struct {
	Session  *domain.ChatSession `json:"session"`
	Greeting *domain.ChatMessage `json:"greeting"`
	Open     bool                `json:"open"`
}

type AgentAssignedPayload struct {
	Session *domain.ChatSession `json:"session"`
	Agent   *domain.AgentStatus `json:"agent"`
}

type AgentJoinedPayload struct {
	Agent           *domain.AgentStatus  `json:"agent"`
	WaitingSessions []domain.ChatSession `json:"waiting_sessions"`
}

type SessionEscalatedPayload struct {
	Session *domain.ChatSession `json:"session"`
	Reason  string              `json:"reason"`
}

type OperatingStatusPayload struct {
	Open    bool   `json:"open"`
	Message string `json:"message,omitempty"`
}

type ChatHistoryPayload struct {
	SessionID string               `json:"session_id"`
	Messages  []domain.ChatMessage `json:"messages"`
	Total     int64                `json:"total"`
}

type CustomerDisconnectedPayload struct {
	SessionID string `json:"session_id"`
}

type HeartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// encodeFrame marshals a typed payload into a wire frame. Marshalling of
// engine-owned types cannot fail; an error here indicates a programming
// mistake and yields an ERROR frame instead.
func encodeFrame(frameType string, payload interface{}) []byte {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return encodeFrame(FrameError, ErrorPayload{
				Code:    ErrCodeInvalidFormat,
				Message: "ошибка сериализации сообщения",
			})
		}
		data = raw
	}

	out, err := json.Marshal(Frame{Type: frameType, Data: data})
	if err != nil {
		return []byte(`{"type":"ERROR","data":{"code":"INVALID_MESSAGE_FORMAT","message":"ошибка сериализации сообщения"}}`)
	}
	return out
}

func errorFrame(code, message string) []byte {
	return encodeFrame(FrameError, ErrorPayload{Code: code, Message: message})
}
