package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"clinichat/internal/domain"
)

type Repositories struct {
	Chat  ChatRepository
	Agent AgentRepository
}

func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		Chat:  NewChatRepository(db),
		Agent: NewAgentRepository(db),
	}
}

// ChatRepository mirrors live session and message state into Postgres.
// The in-memory store is the source of truth for the running system;
// writes here are best-effort and never roll back live state.
type ChatRepository interface {
	CreateSession(ctx context.Context, session *domain.ChatSession) error
	UpdateSession(ctx context.Context, session *domain.ChatSession) error
	GetSessionByID(ctx context.Context, id string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, filter domain.ChatSessionFilter) ([]domain.ChatSession, error)
	CountSessions(ctx context.Context, filter domain.ChatSessionFilter) (int64, error)

	CreateMessage(ctx context.Context, message *domain.ChatMessage) error
	ListMessages(ctx context.Context, filter domain.ChatMessageFilter) ([]domain.ChatMessage, error)
	CountMessages(ctx context.Context, filter domain.ChatMessageFilter) (int64, error)
}

type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
	Update(ctx context.Context, agent *domain.Agent) error
	List(ctx context.Context, limit, offset int) ([]domain.Agent, error)
}
