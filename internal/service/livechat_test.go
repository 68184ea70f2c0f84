package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"clinichat/config"
	"clinichat/internal/domain"
)

type stubChatRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.ChatSession
	messages []domain.ChatMessage
	writes   []string
}

func newStubChatRepo() *stubChatRepo {
	return &stubChatRepo{sessions: make(map[string]*domain.ChatSession)}
}

func (r *stubChatRepo) CreateSession(ctx context.Context, s *domain.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.sessions[s.ID] = &copied
	r.writes = append(r.writes, "session:"+s.ID)
	return nil
}

func (r *stubChatRepo) UpdateSession(ctx context.Context, s *domain.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.sessions[s.ID] = &copied
	return nil
}

func (r *stubChatRepo) GetSessionByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.New("не найдено")
	}
	copied := *s
	return &copied, nil
}

func (r *stubChatRepo) ListSessions(ctx context.Context, f domain.ChatSessionFilter) ([]domain.ChatSession, error) {
	return nil, nil
}

func (r *stubChatRepo) CountSessions(ctx context.Context, f domain.ChatSessionFilter) (int64, error) {
	return 0, nil
}

func (r *stubChatRepo) CreateMessage(ctx context.Context, m *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *m)
	r.writes = append(r.writes, "message:"+m.SessionID)
	return nil
}

func (r *stubChatRepo) writeOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func (r *stubChatRepo) ListMessages(ctx context.Context, f domain.ChatMessageFilter) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ChatMessage
	for _, m := range r.messages {
		if f.SessionID != nil && m.SessionID != *f.SessionID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *stubChatRepo) CountMessages(ctx context.Context, f domain.ChatMessageFilter) (int64, error) {
	msgs, _ := r.ListMessages(ctx, f)
	return int64(len(msgs)), nil
}

type notifierEvent struct {
	kind      string
	sessionID string
	agentID   string
	reason    string
	position  int
	open      bool
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifierEvent
}

func (n *recordingNotifier) record(e notifierEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) SessionAssigned(s *domain.ChatSession, a *domain.AgentStatus) {
	n.record(notifierEvent{kind: "assigned", sessionID: s.ID, agentID: a.ID})
}

func (n *recordingNotifier) SessionEscalated(s *domain.ChatSession, reason string) {
	n.record(notifierEvent{kind: "escalated", sessionID: s.ID, reason: reason})
}

func (n *recordingNotifier) WaitTimeEscalated(e *domain.QueueEntry) {
	n.record(notifierEvent{kind: "wait_escalated", sessionID: e.SessionID, position: e.Position})
}

func (n *recordingNotifier) QueuePositionChanged(e *domain.QueueEntry) {
	n.record(notifierEvent{kind: "position", sessionID: e.SessionID, position: e.Position})
}

func (n *recordingNotifier) SessionEnded(s *domain.ChatSession) {
	n.record(notifierEvent{kind: "ended", sessionID: s.ID})
}

func (n *recordingNotifier) SystemMessage(sessionID string, m *domain.ChatMessage) {
	n.record(notifierEvent{kind: "system", sessionID: sessionID})
}

func (n *recordingNotifier) TypingChanged(i *domain.TypingIndicator) {
	n.record(notifierEvent{kind: "typing", sessionID: i.SessionID})
}

func (n *recordingNotifier) OperatingStatusChanged(open bool, message string) {
	n.record(notifierEvent{kind: "operating_status", open: open})
}

func (n *recordingNotifier) Heartbeat() {
	n.record(notifierEvent{kind: "heartbeat"})
}

func (n *recordingNotifier) byKind(kind string) []notifierEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifierEvent
	for _, e := range n.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		DefaultClinicID:   "clinic-1",
		DefaultMaxChats:   3,
		MaxWaitTime:       10 * time.Minute,
		WaitTimeoutAction: config.WaitTimeoutEscalate,
		AutoAssignEnabled: true,
		QueueEnabled:      true,
		EscalationEnabled: true,
		GreetingMessage:   "Здравствуйте! Чем можем помочь?",
		OfflineMessage:    "Мы сейчас не работаем, оставьте сообщение.",
		WorkingHoursStart: "00:00",
		WorkingHoursEnd:   "00:00",
		Timezone:          "UTC",
	}
}

func newTestService(t *testing.T, cfg config.ChatConfig) (*LiveChatServiceImpl, *stubChatRepo, *recordingNotifier) {
	t.Helper()

	repo := newStubChatRepo()
	svc := NewLiveChatService(cfg, repo, zap.NewNop(), nil)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	return svc, repo, notifier
}

func joinTestAgent(t *testing.T, svc *LiveChatServiceImpl, id string, maxChats int, clinicID string) {
	t.Helper()

	_, _, err := svc.JoinAgent(context.Background(), domain.JoinAgentDTO{
		AgentID:  id,
		Name:     "Оператор " + id,
		MaxChats: maxChats,
		ClinicID: clinicID,
	})
	if err != nil {
		t.Fatalf("JoinAgent(%s): %v", id, err)
	}
}

func TestStartSessionAutoAssign(t *testing.T) {
	svc, _, notifier := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-1", 3, "")

	sess, greeting, err := svc.StartSession(context.Background(), domain.StartChatDTO{
		CustomerName: "Анна",
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if sess.Status != domain.ChatSessionStatusActive {
		t.Errorf("статус = %s, ожидается active", sess.Status)
	}
	if !sess.IsAgentAssigned || sess.AgentID != "agent-1" {
		t.Errorf("сессия не назначена оператору: assigned=%v agent=%s", sess.IsAgentAssigned, sess.AgentID)
	}
	if sess.QueuePosition != nil {
		t.Errorf("queue_position = %d, ожидается nil для активной сессии", *sess.QueuePosition)
	}
	if greeting == nil || greeting.SenderRole != domain.SenderRoleSystem {
		t.Fatalf("ожидается системное приветствие, получено %+v", greeting)
	}

	agents := svc.AgentsSnapshot()
	if len(agents) != 1 || agents[0].CurrentChats != 1 {
		t.Errorf("ожидается один оператор с одной сессией, получено %+v", agents)
	}
	if agents[0].Status != domain.AgentBusy {
		t.Errorf("статус оператора = %s, ожидается busy", agents[0].Status)
	}

	if got := notifier.byKind("assigned"); len(got) != 1 || got[0].agentID != "agent-1" {
		t.Errorf("ожидается одно уведомление о назначении, получено %+v", got)
	}
}

func TestStartSessionQueuedWhenNoAgents(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())

	first, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	second, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Борис"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if first.Status != domain.ChatSessionStatusWaiting || second.Status != domain.ChatSessionStatusWaiting {
		t.Fatalf("обе сессии должны ожидать: %s, %s", first.Status, second.Status)
	}
	if first.QueuePosition == nil || *first.QueuePosition != 1 {
		t.Errorf("позиция первой сессии = %v, ожидается 1", first.QueuePosition)
	}
	if second.QueuePosition == nil || *second.QueuePosition != 2 {
		t.Errorf("позиция второй сессии = %v, ожидается 2", second.QueuePosition)
	}

	queue := svc.QueueSnapshot()
	if len(queue) != 2 {
		t.Fatalf("размер очереди = %d, ожидается 2", len(queue))
	}
	if queue[1].EstimatedWait != 2*averageHandleTime {
		t.Errorf("оценка ожидания = %v, ожидается %v", queue[1].EstimatedWait, 2*averageHandleTime)
	}
}

func TestStartSessionOutsideWorkingHours(t *testing.T) {
	cfg := testChatConfig()
	svc, _, _ := newTestService(t, cfg)
	svc.mu.Lock()
	svc.open = false
	svc.mu.Unlock()

	sess, greeting, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if sess.Status != domain.ChatSessionStatusWaiting {
		t.Errorf("статус = %s, ожидается waiting", sess.Status)
	}
	if sess.QueuePosition != nil {
		t.Errorf("сессия вне рабочих часов не должна попадать в очередь")
	}
	if greeting.Content != cfg.OfflineMessage {
		t.Errorf("приветствие = %q, ожидается офлайн-сообщение", greeting.Content)
	}
	if len(svc.QueueSnapshot()) != 0 {
		t.Errorf("очередь должна быть пустой")
	}
}

func TestEndSessionReleasesAgentOnce(t *testing.T) {
	svc, _, notifier := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-1", 2, "")

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	ended, err := svc.EndSession(context.Background(), sess.ID, domain.SenderRoleAgent)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended.Status != domain.ChatSessionStatusCompleted {
		t.Errorf("статус = %s, ожидается completed", ended.Status)
	}
	if ended.EndedAt == nil {
		t.Error("ожидается заполненный ended_at")
	}

	agents := svc.AgentsSnapshot()
	if agents[0].CurrentChats != 0 || agents[0].Status != domain.AgentAvailable {
		t.Errorf("оператор не освобождён: %+v", agents[0])
	}

	// Terminal sessions reject all further transitions; the agent's
	// counter is decremented exactly once.
	if _, err := svc.EndSession(context.Background(), sess.ID, domain.SenderRoleAgent); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Errorf("повторное завершение: err = %v, ожидается ErrSessionTerminal", err)
	}
	if svc.AgentsSnapshot()[0].CurrentChats != 0 {
		t.Errorf("счётчик сессий оператора изменился при повторном завершении")
	}

	if got := notifier.byKind("ended"); len(got) != 1 {
		t.Errorf("ожидается одно уведомление о завершении, получено %d", len(got))
	}
}

func TestEndWaitingSessionByCustomerCancels(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	ended, err := svc.EndSession(context.Background(), sess.ID, domain.SenderRoleCustomer)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended.Status != domain.ChatSessionStatusCancelled {
		t.Errorf("статус = %s, ожидается cancelled", ended.Status)
	}
	if ended.QueuePosition != nil {
		t.Errorf("queue_position должен быть nil после отмены")
	}
	if len(svc.QueueSnapshot()) != 0 {
		t.Errorf("очередь должна быть пустой после отмены")
	}
}

func TestHandleMessageUpdatesCounters(t *testing.T) {
	svc, repo, _ := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-1", 3, "")

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	startCount := sess.MessageCount

	msg, updated, err := svc.HandleMessage(context.Background(), domain.SendMessageDTO{
		SessionID:  sess.ID,
		Content:    "Добрый день",
		SenderID:   "cust-1",
		SenderRole: domain.SenderRoleCustomer,
	})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if updated.MessageCount != startCount+1 {
		t.Errorf("message_count = %d, ожидается %d", updated.MessageCount, startCount+1)
	}
	if msg.DeliveryStatus != domain.DeliveryStatusSent {
		t.Errorf("статус доставки = %s, ожидается sent", msg.DeliveryStatus)
	}

	// First agent reply stamps first_response_at.
	_, updated, err = svc.HandleMessage(context.Background(), domain.SendMessageDTO{
		SessionID:  sess.ID,
		Content:    "Здравствуйте",
		SenderID:   "agent-1",
		SenderRole: domain.SenderRoleAgent,
	})
	if err != nil {
		t.Fatalf("HandleMessage (agent): %v", err)
	}
	if updated.FirstResponseAt == nil {
		t.Error("ожидается заполненный first_response_at после ответа оператора")
	}

	_ = repo
}

func TestHandleMessageOnTerminalSession(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := svc.EndSession(context.Background(), sess.ID, domain.SenderRoleCustomer); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	_, _, err = svc.HandleMessage(context.Background(), domain.SendMessageDTO{
		SessionID: sess.ID,
		Content:   "ещё вопрос",
	})
	if !errors.Is(err, domain.ErrSessionTerminal) {
		t.Errorf("err = %v, ожидается ErrSessionTerminal", err)
	}
}

func TestHandleMessageSessionNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())

	_, _, err := svc.HandleMessage(context.Background(), domain.SendMessageDTO{
		SessionID: "нет-такой",
		Content:   "привет",
	})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v, ожидается ErrSessionNotFound", err)
	}
}

func TestTransferSessionMovesLoad(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-1", 1, "")

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	joinTestAgent(t, svc, "agent-2", 1, "")

	transferred, err := svc.TransferSession(context.Background(), sess.ID, "agent-2")
	if err != nil {
		t.Fatalf("TransferSession: %v", err)
	}
	if transferred.Status != domain.ChatSessionStatusTransferred || transferred.AgentID != "agent-2" {
		t.Errorf("сессия не передана: %+v", transferred)
	}

	for _, a := range svc.AgentsSnapshot() {
		switch a.ID {
		case "agent-1":
			if a.CurrentChats != 0 {
				t.Errorf("agent-1 не освобождён: %d", a.CurrentChats)
			}
		case "agent-2":
			if a.CurrentChats != 1 {
				t.Errorf("agent-2 не получил сессию: %d", a.CurrentChats)
			}
		}
	}
}

func TestJoinAgentReturnsCompatibleWaiting(t *testing.T) {
	cfg := testChatConfig()
	cfg.AutoAssignEnabled = false
	svc, _, _ := newTestService(t, cfg)

	if _, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна", ClinicID: "clinic-1"}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Борис", ClinicID: "clinic-2"}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	_, waiting, err := svc.JoinAgent(context.Background(), domain.JoinAgentDTO{
		AgentID:  "agent-1",
		MaxChats: 2,
		ClinicID: "clinic-2",
	})
	if err != nil {
		t.Fatalf("JoinAgent: %v", err)
	}
	if len(waiting) != 1 || waiting[0].ClinicID != "clinic-2" {
		t.Errorf("ожидается одна сессия клиники clinic-2, получено %+v", waiting)
	}

	_, waiting, err = svc.JoinAgent(context.Background(), domain.JoinAgentDTO{
		AgentID:  "agent-2",
		MaxChats: 2,
	})
	if err != nil {
		t.Fatalf("JoinAgent: %v", err)
	}
	if len(waiting) != 2 {
		t.Errorf("оператор без клиники должен видеть все сессии, получено %d", len(waiting))
	}
}

func TestAssignAgentManual(t *testing.T) {
	cfg := testChatConfig()
	cfg.AutoAssignEnabled = false
	svc, _, notifier := newTestService(t, cfg)
	joinTestAgent(t, svc, "agent-1", 1, "")

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.Status != domain.ChatSessionStatusWaiting {
		t.Fatalf("статус = %s, ожидается waiting", sess.Status)
	}

	assigned, err := svc.AssignAgent(context.Background(), sess.ID, "agent-1")
	if err != nil {
		t.Fatalf("AssignAgent: %v", err)
	}
	if assigned.Status != domain.ChatSessionStatusActive || assigned.QueuePosition != nil {
		t.Errorf("после назначения: %+v", assigned)
	}

	// The agent is now at capacity.
	sess2, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Борис"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := svc.AssignAgent(context.Background(), sess2.ID, "agent-1"); !errors.Is(err, domain.ErrAgentUnavailable) {
		t.Errorf("err = %v, ожидается ErrAgentUnavailable", err)
	}
	if _, err := svc.AssignAgent(context.Background(), sess2.ID, "нет-такого"); !errors.Is(err, domain.ErrAgentNotFound) {
		t.Errorf("err = %v, ожидается ErrAgentNotFound", err)
	}

	if got := notifier.byKind("assigned"); len(got) != 1 {
		t.Errorf("ожидается одно уведомление о назначении, получено %d", len(got))
	}
}

func TestAgentDisconnectedGoesOffline(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-1", 3, "")

	svc.AgentDisconnected("agent-1")

	agents := svc.AgentsSnapshot()
	if agents[0].Status != domain.AgentOffline {
		t.Errorf("статус = %s, ожидается offline", agents[0].Status)
	}

	// Offline agents are no longer assignment candidates.
	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.Status != domain.ChatSessionStatusWaiting {
		t.Errorf("сессия назначена офлайн-оператору")
	}
}

func TestTypingIndicatorExpires(t *testing.T) {
	svc, _, notifier := newTestService(t, testChatConfig())

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	svc.SetTyping(domain.TypingIndicator{
		SessionID: sess.ID,
		UserID:    "cust-1",
		Role:      domain.SenderRoleCustomer,
		IsTyping:  true,
	})

	deadline := time.After(typingExpiry + 2*time.Second)
	for {
		events := notifier.byKind("typing")
		if len(events) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("индикатор набора не истёк: событий %d", len(events))
		case <-time.After(50 * time.Millisecond):
		}
	}

	svc.mu.RLock()
	remaining := len(svc.typing)
	svc.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("индикатор остался в памяти после истечения")
	}
}

func TestQueuePositionInvariant(t *testing.T) {
	cfg := testChatConfig()
	cfg.AutoAssignEnabled = false
	svc, _, _ := newTestService(t, cfg)

	var ids []string
	for i := 0; i < 4; i++ {
		sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Клиент"})
		if err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		ids = append(ids, sess.ID)
	}

	joinTestAgent(t, svc, "agent-1", 4, "")
	if _, err := svc.AssignAgent(context.Background(), ids[1], "agent-1"); err != nil {
		t.Fatalf("AssignAgent: %v", err)
	}
	if _, err := svc.EndSession(context.Background(), ids[2], domain.SenderRoleCustomer); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	// queuePosition is non-nil iff the session is WAITING.
	for _, id := range ids {
		sess, err := svc.GetSession(id)
		if err != nil {
			t.Fatalf("GetSession(%s): %v", id, err)
		}
		waiting := sess.Status == domain.ChatSessionStatusWaiting
		hasPos := sess.QueuePosition != nil
		if waiting != hasPos {
			t.Errorf("сессия %s: status=%s queue_position=%v", id, sess.Status, sess.QueuePosition)
		}
	}

	queue := svc.QueueSnapshot()
	for i, entry := range queue {
		if entry.Position != i+1 {
			t.Errorf("позиция %d в очереди = %d, нарушена непрерывность", i, entry.Position)
		}
	}
}

func TestAssignAgentRejectsAssignedSession(t *testing.T) {
	cfg := testChatConfig()
	cfg.AutoAssignEnabled = false
	svc, _, _ := newTestService(t, cfg)
	joinTestAgent(t, svc, "agent-1", 2, "")
	joinTestAgent(t, svc, "agent-2", 2, "")

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := svc.AssignAgent(context.Background(), sess.ID, "agent-1"); err != nil {
		t.Fatalf("AssignAgent: %v", err)
	}
	if _, err := svc.AssignAgent(context.Background(), sess.ID, "agent-2"); !errors.Is(err, domain.ErrAlreadyAssigned) {
		t.Fatalf("err = %v, ожидается ErrAlreadyAssigned", err)
	}

	if _, err := svc.EndSession(context.Background(), sess.ID, domain.SenderRoleAgent); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	// The first agent's load is released in full; the second agent
	// never carried the session.
	for _, a := range svc.AgentsSnapshot() {
		if a.CurrentChats != 0 {
			t.Errorf("оператор %s: current_chats = %d после завершения", a.ID, a.CurrentChats)
		}
	}
}

func TestTransferRejectsWaitingSession(t *testing.T) {
	cfg := testChatConfig()
	cfg.AutoAssignEnabled = false
	svc, _, _ := newTestService(t, cfg)
	joinTestAgent(t, svc, "agent-1", 2, "")

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := svc.TransferSession(context.Background(), sess.ID, "agent-1"); !errors.Is(err, domain.ErrSessionNotAssigned) {
		t.Fatalf("err = %v, ожидается ErrSessionNotAssigned", err)
	}

	// The session stays queued and untouched.
	got, err := svc.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != domain.ChatSessionStatusWaiting || got.QueuePosition == nil || *got.QueuePosition != 1 {
		t.Errorf("сессия изменена отклонённой передачей: %+v", got)
	}
	for _, a := range svc.AgentsSnapshot() {
		if a.CurrentChats != 0 {
			t.Errorf("оператор %s получил нагрузку от отклонённой передачи: %d", a.ID, a.CurrentChats)
		}
	}
}

func TestPersistWriterOrdersSessionBeforeMessages(t *testing.T) {
	svc, repo, _ := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-1", 3, "")

	svc.Start()

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, _, err := svc.HandleMessage(context.Background(), domain.SendMessageDTO{
		SessionID:  sess.ID,
		Content:    "Здравствуйте",
		SenderRole: domain.SenderRoleCustomer,
	}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	svc.Stop()

	writes := repo.writeOrder()
	sessionAt := -1
	for i, w := range writes {
		if w == "session:"+sess.ID {
			sessionAt = i
			break
		}
	}
	if sessionAt < 0 {
		t.Fatalf("сессия не записана: %v", writes)
	}
	for i, w := range writes {
		if w == "message:"+sess.ID && i < sessionAt {
			t.Fatalf("сообщение записано раньше сессии: %v", writes)
		}
	}

	messages, total, err := svc.History(context.Background(), sess.ID, 50, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// Greeting plus the customer message.
	if total != 2 || len(messages) != 2 {
		t.Errorf("история: %d сообщений, total %d, ожидается 2", len(messages), total)
	}
}

func TestSessionByIDFallsBackToArchive(t *testing.T) {
	svc, repo, _ := newTestService(t, testChatConfig())

	archived := &domain.ChatSession{
		ID:     "архив-1",
		Status: domain.ChatSessionStatusCompleted,
	}
	if err := repo.CreateSession(context.Background(), archived); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := svc.SessionByID(context.Background(), "архив-1")
	if err != nil {
		t.Fatalf("SessionByID: %v", err)
	}
	if got.Status != domain.ChatSessionStatusCompleted {
		t.Errorf("статус = %s, ожидается completed", got.Status)
	}

	if _, err := svc.SessionByID(context.Background(), "нет-такой"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v, ожидается ErrSessionNotFound", err)
	}
}
