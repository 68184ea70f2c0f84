package domain

import (
	"time"
)

// AgentAvailability represents a support agent's live availability
type AgentAvailability string

const (
	AgentAvailable AgentAvailability = "available"
	AgentBusy      AgentAvailability = "busy"
	AgentAway      AgentAvailability = "away"
	AgentOffline   AgentAvailability = "offline"
)

// AgentStatus is one agent's live availability record in the in-memory
// registry. CurrentChats never exceeds MaxChats while the agent is
// available or busy.
type AgentStatus struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Status          AgentAvailability `json:"status"`
	CurrentChats    int               `json:"current_chats"`
	MaxChats        int               `json:"max_chats"`
	Specialties     []string          `json:"specialties,omitempty"`
	Languages       []string          `json:"languages,omitempty"`
	ClinicID        string            `json:"clinic_id,omitempty"`
	LastActivityAt  time.Time         `json:"last_activity_at"`
	AvgResponseTime time.Duration     `json:"avg_response_time"`
	Satisfaction    float64           `json:"satisfaction"`
}

// LoadRatio is the assignment sort key; an agent with MaxChats == 0 is
// treated as fully loaded.
func (a *AgentStatus) LoadRatio() float64 {
	if a.MaxChats <= 0 {
		return 1
	}
	return float64(a.CurrentChats) / float64(a.MaxChats)
}

// QueueEntry is the ephemeral waiting-list record for one WAITING session.
// Positions are 1-based and contiguous with the queue order.
type QueueEntry struct {
	SessionID     string        `json:"session_id"`
	Position      int           `json:"position"`
	CustomerName  string        `json:"customer_name,omitempty"`
	Priority      ChatPriority  `json:"priority"`
	WaitTime      time.Duration `json:"wait_time"`
	EstimatedWait time.Duration `json:"estimated_wait"`
	ClinicID      string        `json:"clinic_id,omitempty"`
	Department    string        `json:"department,omitempty"`
	Keywords      []string      `json:"keywords,omitempty"`
	EnqueuedAt    time.Time     `json:"enqueued_at"`
	WaitEscalated bool          `json:"-"`
}

// TypingIndicator is a transient signal keyed by (session, user); it
// auto-expires and is never persisted.
type TypingIndicator struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	UserName  string     `json:"user_name,omitempty"`
	Role      SenderRole `json:"role"`
	IsTyping  bool       `json:"is_typing"`
	StartedAt time.Time  `json:"started_at"`
}

// JoinAgentDTO carries an agent's presence announcement
type JoinAgentDTO struct {
	AgentID     string   `json:"agent_id" binding:"required"`
	Name        string   `json:"name"`
	MaxChats    int      `json:"max_chats"`
	Specialties []string `json:"specialties"`
	Languages   []string `json:"languages"`
	ClinicID    string   `json:"clinic_id"`
}

// Agent is the durable agent account record
type Agent struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	ClinicID     string    `json:"clinic_id,omitempty" db:"clinic_id"`
	Specialties  []string  `json:"specialties,omitempty" db:"specialties"`
	Languages    []string  `json:"languages,omitempty" db:"languages"`
	MaxChats     int       `json:"max_chats" db:"max_chats"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// RegisterAgentDTO carries an agent registration request
type RegisterAgentDTO struct {
	Email       string   `json:"email" binding:"required,email"`
	Name        string   `json:"name" binding:"required"`
	Password    string   `json:"password" binding:"required,min=8"`
	ClinicID    string   `json:"clinic_id"`
	Specialties []string `json:"specialties"`
	Languages   []string `json:"languages"`
	MaxChats    int      `json:"max_chats"`
}

// UpdateAgentDTO carries a profile update; nil fields are left as is
type UpdateAgentDTO struct {
	Name        *string  `json:"name,omitempty"`
	ClinicID    *string  `json:"clinic_id,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	MaxChats    *int     `json:"max_chats,omitempty"`
}

// LoginRequest carries agent credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Tokens is the pair returned on successful authentication
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
