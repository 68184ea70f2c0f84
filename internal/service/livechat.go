package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinichat/config"
	"clinichat/internal/domain"
	"clinichat/internal/repository"
	"clinichat/pkg/metrics"
)

const (
	queueSweepInterval  = 10 * time.Second
	heartbeatInterval   = 30 * time.Second
	hoursCheckInterval  = time.Minute
	typingExpiry        = 3 * time.Second
	persistTimeout      = 5 * time.Second
)

type LiveChatServiceImpl struct {
	cfg     config.ChatConfig
	repo    repository.ChatRepository
	logger  *zap.Logger
	metrics *metrics.Collector

	mu       sync.RWMutex
	sessions map[string]*domain.ChatSession
	agents   map[string]*domain.AgentStatus
	queue    []*domain.QueueEntry
	typing   map[string]*domain.TypingIndicator
	timers   map[string]*time.Timer
	open     bool
	loc      *time.Location

	notifier  ChatNotifier
	persistCh chan func(context.Context)
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewLiveChatService(cfg config.ChatConfig, repo repository.ChatRepository, logger *zap.Logger, m *metrics.Collector) *LiveChatServiceImpl {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("неизвестный часовой пояс, используется UTC", zap.String("timezone", cfg.Timezone))
		loc = time.UTC
	}

	s := &LiveChatServiceImpl{
		cfg:       cfg,
		repo:      repo,
		logger:    logger,
		metrics:   m,
		sessions:  make(map[string]*domain.ChatSession),
		agents:    make(map[string]*domain.AgentStatus),
		typing:    make(map[string]*domain.TypingIndicator),
		timers:    make(map[string]*time.Timer),
		loc:       loc,
		persistCh: make(chan func(context.Context), 1024),
		stopCh:    make(chan struct{}),
	}
	s.open = s.withinWorkingHours(time.Now())

	return s
}

func (s *LiveChatServiceImpl) SetNotifier(n ChatNotifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

func (s *LiveChatServiceImpl) getNotifier() ChatNotifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifier
}

// Start launches the background loops: queue sweep, operating-hours
// check, heartbeat broadcast and the persistence writer.
func (s *LiveChatServiceImpl) Start() {
	s.wg.Add(4)
	go s.sweepLoop()
	go s.hoursLoop()
	go s.heartbeatLoop()
	go s.persistLoop()

	s.logger.Info("движок живого чата запущен",
		zap.Bool("open", s.IsOpen()),
		zap.String("timezone", s.loc.String()))
}

func (s *LiveChatServiceImpl) Stop() {
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	s.logger.Info("движок живого чата остановлен")
}

// StartSession creates a session and either assigns an agent right away,
// queues it, or leaves it waiting unqueued outside working hours. The
// returned system message is the greeting or the offline notice.
func (s *LiveChatServiceImpl) StartSession(ctx context.Context, dto domain.StartChatDTO) (*domain.ChatSession, *domain.ChatMessage, error) {
	now := time.Now()

	clinicID := dto.ClinicID
	if clinicID == "" {
		clinicID = s.cfg.DefaultClinicID
	}

	sess := &domain.ChatSession{
		ID:              uuid.New().String(),
		CustomerName:    dto.CustomerName,
		CustomerContact: dto.CustomerContact,
		ClinicID:        clinicID,
		DoctorID:        dto.DoctorID,
		ServiceID:       dto.ServiceID,
		Status:          domain.ChatSessionStatusWaiting,
		Priority:        domain.ChatPriorityNormal,
		StartedAt:       now,
		LastActivityAt:  now,
	}

	greetingText := s.cfg.GreetingMessage

	s.mu.Lock()
	s.sessions[sess.ID] = sess

	var assignedAgent *domain.AgentStatus
	if s.open {
		if s.cfg.AutoAssignEnabled {
			assignedAgent = s.assignBestCandidateLocked(sess)
		}
		if assignedAgent == nil && s.cfg.QueueEnabled {
			s.enqueueLocked(sess, dto.Topic)
		}
	} else {
		greetingText = s.cfg.OfflineMessage
	}

	open := s.open
	greeting := s.systemMessageLocked(sess, greetingText)
	sessCopy := cloneSession(sess)
	var agentCopy *domain.AgentStatus
	if assignedAgent != nil {
		agentCopy = cloneAgent(assignedAgent)
	}
	s.mu.Unlock()

	s.persistNewSession(sessCopy)
	s.persistMessage(greeting)

	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
		if agentCopy != nil {
			s.metrics.AssignmentsTotal.Inc()
			s.metrics.TimeToAssignment.Observe(time.Since(sessCopy.StartedAt).Seconds())
		}
		s.updateGauges()
	}

	if agentCopy != nil {
		if n := s.getNotifier(); n != nil {
			n.SessionAssigned(sessCopy, agentCopy)
		}
	}

	s.logger.Info("сессия чата создана",
		zap.String("session_id", sess.ID),
		zap.Bool("assigned", agentCopy != nil),
		zap.Bool("open", open))

	return sessCopy, greeting, nil
}

// HandleMessage records one inbound message, updates session counters and
// runs the escalation monitor. The caller broadcasts the returned message.
func (s *LiveChatServiceImpl) HandleMessage(ctx context.Context, dto domain.SendMessageDTO) (*domain.ChatMessage, *domain.ChatSession, error) {
	now := time.Now()

	s.mu.Lock()
	sess, ok := s.sessions[dto.SessionID]
	if !ok {
		s.mu.Unlock()
		return nil, nil, domain.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		s.mu.Unlock()
		return nil, nil, domain.ErrSessionTerminal
	}

	msgType := dto.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	role := dto.SenderRole
	if role == "" {
		role = domain.SenderRoleCustomer
	}

	msg := &domain.ChatMessage{
		ID:             uuid.New().String(),
		SessionID:      sess.ID,
		Content:        dto.Content,
		Type:           msgType,
		SenderID:       dto.SenderID,
		SenderName:     dto.SenderName,
		SenderRole:     role,
		DeliveryStatus: domain.DeliveryStatusSent,
		Attachments:    dto.Attachments,
		SentAt:         now,
	}

	if role == domain.SenderRoleCustomer {
		msg.Sentiment, msg.SentimentScore = analyzeSentiment(dto.Content)
	}

	sess.MessageCount++
	sess.LastActivityAt = now
	if role == domain.SenderRoleAgent && sess.FirstResponseAt == nil {
		sess.FirstResponseAt = &now
	}

	var escalation *escalationResult
	if s.cfg.EscalationEnabled && role == domain.SenderRoleCustomer {
		escalation = s.checkEscalationLocked(sess, msg)
	}

	msgCopy := *msg
	sessCopy := cloneSession(sess)
	s.mu.Unlock()

	s.persistMessage(&msgCopy)
	s.persistSession(sessCopy)

	if s.metrics != nil {
		s.metrics.MessagesTotal.WithLabelValues(string(role)).Inc()
	}

	if escalation != nil {
		if s.metrics != nil {
			s.metrics.EscalationsTotal.WithLabelValues(escalation.reason).Inc()
		}
		if n := s.getNotifier(); n != nil {
			n.SessionEscalated(sessCopy, escalation.reason)
			for i := range escalation.moved {
				n.QueuePositionChanged(&escalation.moved[i])
			}
		}
		s.logger.Warn("сессия эскалирована",
			zap.String("session_id", sess.ID),
			zap.String("reason", escalation.reason))
	}

	return &msgCopy, sessCopy, nil
}

// EndSession performs the terminal transition: COMPLETED when ended from
// an active conversation, CANCELLED when the customer leaves the queue.
func (s *LiveChatServiceImpl) EndSession(ctx context.Context, sessionID string, endedBy domain.SenderRole) (*domain.ChatSession, error) {
	now := time.Now()

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		s.mu.Unlock()
		return nil, domain.ErrSessionTerminal
	}

	final := domain.ChatSessionStatusCompleted
	if endedBy == domain.SenderRoleCustomer && sess.Status == domain.ChatSessionStatusWaiting {
		final = domain.ChatSessionStatusCancelled
	}

	moved := s.dequeueLocked(sess.ID)
	s.releaseAgentLocked(sess)
	sess.Status = final
	sess.EndedAt = &now
	sess.LastActivityAt = now
	sess.QueuePosition = nil

	sessCopy := cloneSession(sess)
	s.mu.Unlock()

	s.persistSession(sessCopy)

	if s.metrics != nil {
		s.metrics.SessionsEnded.WithLabelValues(string(final)).Inc()
		s.updateGauges()
	}

	if n := s.getNotifier(); n != nil {
		n.SessionEnded(sessCopy)
		for i := range moved {
			n.QueuePositionChanged(&moved[i])
		}
	}

	s.logger.Info("сессия чата завершена",
		zap.String("session_id", sessionID),
		zap.String("status", string(final)))

	return sessCopy, nil
}

// TransferSession moves an assigned session to another agent. Waiting
// sessions are not transferable; they are claimed through AssignAgent.
func (s *LiveChatServiceImpl) TransferSession(ctx context.Context, sessionID, toAgentID string) (*domain.ChatSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		s.mu.Unlock()
		return nil, domain.ErrSessionTerminal
	}
	if !sess.IsAgentAssigned {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotAssigned
	}

	target, ok := s.agents[toAgentID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrAgentNotFound
	}
	if !agentCanAccept(target) {
		s.mu.Unlock()
		return nil, domain.ErrAgentUnavailable
	}

	s.releaseAgentLocked(sess)
	s.bindAgentLocked(sess, target)
	sess.Status = domain.ChatSessionStatusTransferred
	sess.LastActivityAt = time.Now()

	sessCopy := cloneSession(sess)
	targetCopy := cloneAgent(target)
	s.mu.Unlock()

	s.persistSession(sessCopy)

	if n := s.getNotifier(); n != nil {
		n.SessionAssigned(sessCopy, targetCopy)
	}

	s.logger.Info("сессия передана другому оператору",
		zap.String("session_id", sessionID),
		zap.String("agent_id", toAgentID))

	return sessCopy, nil
}

// JoinAgent registers or refreshes an agent's presence at AVAILABLE with
// zero load and returns the waiting sessions the agent may pick up.
func (s *LiveChatServiceImpl) JoinAgent(ctx context.Context, dto domain.JoinAgentDTO) (*domain.AgentStatus, []domain.ChatSession, error) {
	maxChats := dto.MaxChats
	if maxChats <= 0 {
		maxChats = s.cfg.DefaultMaxChats
	}

	s.mu.Lock()
	agent := &domain.AgentStatus{
		ID:             dto.AgentID,
		Name:           dto.Name,
		Status:         domain.AgentAvailable,
		CurrentChats:   0,
		MaxChats:       maxChats,
		Specialties:    dto.Specialties,
		Languages:      dto.Languages,
		ClinicID:       dto.ClinicID,
		LastActivityAt: time.Now(),
	}
	s.agents[dto.AgentID] = agent

	var waiting []domain.ChatSession
	for _, entry := range s.queue {
		sess, ok := s.sessions[entry.SessionID]
		if !ok {
			continue
		}
		if agent.ClinicID == "" || agent.ClinicID == sess.ClinicID {
			waiting = append(waiting, *cloneSession(sess))
		}
	}

	agentCopy := cloneAgent(agent)
	s.mu.Unlock()

	if s.metrics != nil {
		s.updateGauges()
	}

	s.logger.Info("оператор подключился",
		zap.String("agent_id", dto.AgentID),
		zap.Int("max_chats", maxChats),
		zap.Int("waiting", len(waiting)))

	return agentCopy, waiting, nil
}

// AssignAgent is the manual assignment path: an operator self-selects a
// waiting session.
func (s *LiveChatServiceImpl) AssignAgent(ctx context.Context, sessionID, agentID string) (*domain.ChatSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		s.mu.Unlock()
		return nil, domain.ErrSessionTerminal
	}

	if sess.IsAgentAssigned {
		s.mu.Unlock()
		return nil, domain.ErrAlreadyAssigned
	}

	agent, ok := s.agents[agentID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrAgentNotFound
	}
	if !agentCanAccept(agent) {
		s.mu.Unlock()
		return nil, domain.ErrAgentUnavailable
	}

	moved := s.dequeueLocked(sess.ID)
	s.bindAgentLocked(sess, agent)
	if sess.Status == domain.ChatSessionStatusWaiting {
		sess.Status = domain.ChatSessionStatusActive
	}

	sessCopy := cloneSession(sess)
	agentCopy := cloneAgent(agent)
	s.mu.Unlock()

	s.persistSession(sessCopy)

	if s.metrics != nil {
		s.metrics.AssignmentsTotal.Inc()
		s.metrics.TimeToAssignment.Observe(time.Since(sessCopy.StartedAt).Seconds())
		s.updateGauges()
	}

	if n := s.getNotifier(); n != nil {
		n.SessionAssigned(sessCopy, agentCopy)
		for i := range moved {
			n.QueuePositionChanged(&moved[i])
		}
	}

	return sessCopy, nil
}

// AgentDisconnected marks the registry record OFFLINE. Sessions assigned
// to the agent keep their assignment; no liveness timeout exists beyond
// this explicit signal.
func (s *LiveChatServiceImpl) AgentDisconnected(agentID string) {
	s.mu.Lock()
	if agent, ok := s.agents[agentID]; ok {
		agent.Status = domain.AgentOffline
		agent.LastActivityAt = time.Now()
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.updateGauges()
	}

	s.logger.Info("оператор отключился", zap.String("agent_id", agentID))
}

// CustomerDisconnected records activity only; disconnection never
// terminates a session.
func (s *LiveChatServiceImpl) CustomerDisconnected(sessionID string) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.LastActivityAt = time.Now()
	}
	s.mu.Unlock()

	s.logger.Info("клиент отключился", zap.String("session_id", sessionID))
}

// SetTyping stores a transient typing indicator that expires on its own
// after typingExpiry.
func (s *LiveChatServiceImpl) SetTyping(indicator domain.TypingIndicator) {
	key := indicator.SessionID + "/" + indicator.UserID
	indicator.StartedAt = time.Now()

	s.mu.Lock()
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}

	if indicator.IsTyping {
		ind := indicator
		s.typing[key] = &ind
		s.timers[key] = time.AfterFunc(typingExpiry, func() {
			s.expireTyping(key)
		})
	} else {
		delete(s.typing, key)
	}
	indCopy := indicator
	s.mu.Unlock()

	if n := s.getNotifier(); n != nil {
		n.TypingChanged(&indCopy)
	}
}

func (s *LiveChatServiceImpl) expireTyping(key string) {
	s.mu.Lock()
	ind, ok := s.typing[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.typing, key)
	delete(s.timers, key)
	expired := *ind
	expired.IsTyping = false
	s.mu.Unlock()

	if n := s.getNotifier(); n != nil {
		n.TypingChanged(&expired)
	}
}

// GetSession returns a copy of the live session record.
func (s *LiveChatServiceImpl) GetSession(sessionID string) (*domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

// SessionByID prefers the live record and falls back to the archive for
// sessions that ended in an earlier process life.
func (s *LiveChatServiceImpl) SessionByID(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	if ok {
		copied := cloneSession(sess)
		s.mu.RUnlock()
		return copied, nil
	}
	s.mu.RUnlock()

	stored, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}
	return stored, nil
}

// ListSessions reads the durable archive for reporting.
func (s *LiveChatServiceImpl) ListSessions(ctx context.Context, filter domain.ChatSessionFilter) ([]domain.ChatSession, int64, error) {
	sessions, err := s.repo.ListSessions(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountSessions(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// History reads the persisted transcript; the durable store is the
// record for anything older than process memory.
func (s *LiveChatServiceImpl) History(ctx context.Context, sessionID string, limit, offset int) ([]domain.ChatMessage, int64, error) {
	if _, err := s.SessionByID(ctx, sessionID); err != nil {
		return nil, 0, err
	}

	filter := domain.ChatMessageFilter{
		SessionID: &sessionID,
		Limit:     limit,
		Offset:    offset,
	}

	messages, err := s.repo.ListMessages(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountMessages(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (s *LiveChatServiceImpl) AgentsSnapshot() []domain.AgentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]domain.AgentStatus, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, *cloneAgent(a))
	}
	return agents
}

func (s *LiveChatServiceImpl) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.getNotifier(); n != nil {
				n.Heartbeat()
			}
		case <-s.stopCh:
			return
		}
	}
}

// systemMessageLocked builds a system message and bumps the session
// counters; callers persist it after unlocking.
func (s *LiveChatServiceImpl) systemMessageLocked(sess *domain.ChatSession, content string) *domain.ChatMessage {
	now := time.Now()
	sess.MessageCount++
	sess.LastActivityAt = now

	return &domain.ChatMessage{
		ID:             uuid.New().String(),
		SessionID:      sess.ID,
		Content:        content,
		Type:           domain.MessageTypeSystem,
		SenderID:       "system",
		SenderRole:     domain.SenderRoleSystem,
		DeliveryStatus: domain.DeliveryStatusSent,
		SentAt:         now,
	}
}

// bindAgentLocked sets the agent fields on the session and accounts the
// agent's load. The caller decides the resulting session status.
func (s *LiveChatServiceImpl) bindAgentLocked(sess *domain.ChatSession, agent *domain.AgentStatus) {
	sess.AgentID = agent.ID
	sess.AgentName = agent.Name
	sess.IsAgentAssigned = true

	agent.CurrentChats++
	agent.LastActivityAt = time.Now()
	if agent.CurrentChats > 0 {
		agent.Status = domain.AgentBusy
	}
}

// releaseAgentLocked decrements the assigned agent's load exactly once
// per session end and restores AVAILABLE when capacity frees up.
func (s *LiveChatServiceImpl) releaseAgentLocked(sess *domain.ChatSession) {
	if !sess.IsAgentAssigned {
		return
	}

	agent, ok := s.agents[sess.AgentID]
	if ok {
		if agent.CurrentChats > 0 {
			agent.CurrentChats--
		}
		if agent.Status == domain.AgentBusy && agent.CurrentChats < agent.MaxChats {
			agent.Status = domain.AgentAvailable
		}
		agent.LastActivityAt = time.Now()
	}

	sess.IsAgentAssigned = false
}

func agentCanAccept(agent *domain.AgentStatus) bool {
	return agent.Status == domain.AgentAvailable && agent.CurrentChats < agent.MaxChats
}

func (s *LiveChatServiceImpl) updateGauges() {
	s.mu.RLock()
	active := 0
	for _, sess := range s.sessions {
		if !sess.Status.IsTerminal() {
			active++
		}
	}
	queued := len(s.queue)
	online := 0
	for _, a := range s.agents {
		if a.Status != domain.AgentOffline {
			online++
		}
	}
	s.mu.RUnlock()

	s.metrics.ActiveSessions.Set(float64(active))
	s.metrics.QueueDepth.Set(float64(queued))
	s.metrics.ConnectedAgents.Set(float64(online))
}

// Persistence is write-through and best-effort: a failed write is logged
// and never rolled back into live state. A single writer goroutine
// applies the writes in enqueue order, so a session row always reaches
// the database before the messages that reference it.

func (s *LiveChatServiceImpl) persistLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.persistCh:
			s.runPersist(op)
		case <-s.stopCh:
			// Drain what was queued before shutdown.
			for {
				select {
				case op := <-s.persistCh:
					s.runPersist(op)
				default:
					return
				}
			}
		}
	}
}

func (s *LiveChatServiceImpl) runPersist(op func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	op(ctx)
}

// enqueuePersist must not be called while holding the state lock: a full
// queue blocks until the writer catches up.
func (s *LiveChatServiceImpl) enqueuePersist(op func(context.Context)) {
	select {
	case s.persistCh <- op:
	case <-s.stopCh:
	}
}

func (s *LiveChatServiceImpl) persistNewSession(sess *domain.ChatSession) {
	s.enqueuePersist(func(ctx context.Context) {
		if err := s.repo.CreateSession(ctx, sess); err != nil {
			s.logger.Error("не удалось сохранить сессию", zap.String("session_id", sess.ID), zap.Error(err))
		}
	})
}

func (s *LiveChatServiceImpl) persistSession(sess *domain.ChatSession) {
	s.enqueuePersist(func(ctx context.Context) {
		if err := s.repo.UpdateSession(ctx, sess); err != nil {
			s.logger.Error("не удалось обновить сессию", zap.String("session_id", sess.ID), zap.Error(err))
		}
	})
}

func (s *LiveChatServiceImpl) persistMessage(msg *domain.ChatMessage) {
	s.enqueuePersist(func(ctx context.Context) {
		if err := s.repo.CreateMessage(ctx, msg); err != nil {
			s.logger.Error("не удалось сохранить сообщение", zap.String("message_id", msg.ID), zap.Error(err))
		}
	})
}

func cloneSession(sess *domain.ChatSession) *domain.ChatSession {
	out := *sess
	if sess.QueuePosition != nil {
		pos := *sess.QueuePosition
		out.QueuePosition = &pos
	}
	if sess.FirstResponseAt != nil {
		t := *sess.FirstResponseAt
		out.FirstResponseAt = &t
	}
	if sess.EndedAt != nil {
		t := *sess.EndedAt
		out.EndedAt = &t
	}
	if sess.EscalatedAt != nil {
		t := *sess.EscalatedAt
		out.EscalatedAt = &t
	}
	return &out
}

func cloneAgent(agent *domain.AgentStatus) *domain.AgentStatus {
	out := *agent
	out.Specialties = append([]string(nil), agent.Specialties...)
	out.Languages = append([]string(nil), agent.Languages...)
	return &out
}
