package service

import (
	"context"

	"go.uber.org/zap"

	"clinichat/config"
	"clinichat/internal/domain"
	"clinichat/internal/repository"
	"clinichat/pkg/metrics"
)

type Deps struct {
	Repos   *repository.Repositories
	Logger  *zap.Logger
	Config  *config.Config
	Metrics *metrics.Collector
}

type Services struct {
	LiveChat LiveChatService
	Auth     AuthService
}

func NewServices(deps Deps) *Services {
	return &Services{
		LiveChat: NewLiveChatService(deps.Config.Chat, deps.Repos.Chat, deps.Logger, deps.Metrics),
		Auth:     NewAuthService(deps.Repos.Agent, deps.Config.JWT, deps.Logger),
	}
}

// ChatNotifier delivers engine events to connected participants. The
// websocket hub implements it; the engine never calls it while holding
// its state lock.
type ChatNotifier interface {
	SessionAssigned(session *domain.ChatSession, agent *domain.AgentStatus)
	SessionEscalated(session *domain.ChatSession, reason string)
	WaitTimeEscalated(entry *domain.QueueEntry)
	QueuePositionChanged(entry *domain.QueueEntry)
	SessionEnded(session *domain.ChatSession)
	SystemMessage(sessionID string, message *domain.ChatMessage)
	TypingChanged(indicator *domain.TypingIndicator)
	OperatingStatusChanged(open bool, message string)
	Heartbeat()
}

// LiveChatService owns all live session, queue and agent state. It is the
// single long-lived stateful object of the process: constructed once,
// started after the notifier is attached, stopped on shutdown.
type LiveChatService interface {
	Start()
	Stop()
	SetNotifier(n ChatNotifier)

	StartSession(ctx context.Context, dto domain.StartChatDTO) (*domain.ChatSession, *domain.ChatMessage, error)
	HandleMessage(ctx context.Context, dto domain.SendMessageDTO) (*domain.ChatMessage, *domain.ChatSession, error)
	EndSession(ctx context.Context, sessionID string, endedBy domain.SenderRole) (*domain.ChatSession, error)
	TransferSession(ctx context.Context, sessionID, toAgentID string) (*domain.ChatSession, error)

	JoinAgent(ctx context.Context, dto domain.JoinAgentDTO) (*domain.AgentStatus, []domain.ChatSession, error)
	AssignAgent(ctx context.Context, sessionID, agentID string) (*domain.ChatSession, error)
	AgentDisconnected(agentID string)
	CustomerDisconnected(sessionID string)

	SetTyping(indicator domain.TypingIndicator)

	GetSession(sessionID string) (*domain.ChatSession, error)
	SessionByID(ctx context.Context, sessionID string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, filter domain.ChatSessionFilter) ([]domain.ChatSession, int64, error)
	History(ctx context.Context, sessionID string, limit, offset int) ([]domain.ChatMessage, int64, error)
	QueueSnapshot() []domain.QueueEntry
	AgentsSnapshot() []domain.AgentStatus
	IsOpen() bool
}

type AuthService interface {
	Register(ctx context.Context, dto domain.RegisterAgentDTO) (*domain.Agent, error)
	Login(ctx context.Context, dto domain.LoginRequest) (*domain.Tokens, *domain.Agent, error)
	ParseToken(ctx context.Context, token string) (string, error)

	Agent(ctx context.Context, agentID string) (*domain.Agent, error)
	UpdateProfile(ctx context.Context, agentID string, dto domain.UpdateAgentDTO) (*domain.Agent, error)
	ListAgents(ctx context.Context, limit, offset int) ([]domain.Agent, error)
}
