package service

import (
	"context"
	"testing"
	"time"

	"clinichat/config"
	"clinichat/internal/domain"
)

func TestCandidatesOrderedByLoadRatio(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-a", 4, "")
	joinTestAgent(t, svc, "agent-b", 2, "")

	svc.mu.Lock()
	svc.agents["agent-a"].CurrentChats = 2 // ratio 0.5
	svc.agents["agent-b"].CurrentChats = 0 // ratio 0
	sess := &domain.ChatSession{ID: "s1", ClinicID: "clinic-1"}
	candidates := svc.candidatesLocked(sess)
	svc.mu.Unlock()

	if len(candidates) != 2 {
		t.Fatalf("кандидатов = %d, ожидается 2", len(candidates))
	}
	if candidates[0].ID != "agent-b" {
		t.Errorf("первый кандидат = %s, ожидается agent-b с меньшей загрузкой", candidates[0].ID)
	}
}

func TestCandidatesTieBrokenByResponseTime(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-slow", 2, "")
	joinTestAgent(t, svc, "agent-fast", 2, "")

	svc.mu.Lock()
	svc.agents["agent-slow"].AvgResponseTime = 40 * time.Second
	svc.agents["agent-fast"].AvgResponseTime = 5 * time.Second
	sess := &domain.ChatSession{ID: "s1", ClinicID: "clinic-1"}
	first := svc.candidatesLocked(sess)
	second := svc.candidatesLocked(sess)
	svc.mu.Unlock()

	if first[0].ID != "agent-fast" {
		t.Errorf("первый кандидат = %s, ожидается agent-fast", first[0].ID)
	}
	// Deterministic for a fixed snapshot.
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("порядок кандидатов недетерминирован: %v vs %v", first, second)
		}
	}
}

func TestCandidatesClinicFilter(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-any", 2, "")
	joinTestAgent(t, svc, "agent-c1", 2, "clinic-1")
	joinTestAgent(t, svc, "agent-c2", 2, "clinic-2")

	svc.mu.Lock()
	sess := &domain.ChatSession{ID: "s1", ClinicID: "clinic-1"}
	candidates := svc.candidatesLocked(sess)
	svc.mu.Unlock()

	if len(candidates) != 2 {
		t.Fatalf("кандидатов = %d, ожидается 2 (без клиники и clinic-1)", len(candidates))
	}
	for _, c := range candidates {
		if c.ID == "agent-c2" {
			t.Errorf("оператор другой клиники не должен быть кандидатом")
		}
	}
}

func TestCurrentChatsNeverExceedsMax(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())
	joinTestAgent(t, svc, "agent-1", 2, "")

	for i := 0; i < 5; i++ {
		if _, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Клиент"}); err != nil {
			t.Fatalf("StartSession: %v", err)
		}
	}

	agents := svc.AgentsSnapshot()
	if agents[0].CurrentChats > agents[0].MaxChats {
		t.Errorf("current_chats=%d превышает max_chats=%d", agents[0].CurrentChats, agents[0].MaxChats)
	}
	if agents[0].CurrentChats != 2 {
		t.Errorf("current_chats = %d, ожидается 2", agents[0].CurrentChats)
	}
	if got := len(svc.QueueSnapshot()); got != 3 {
		t.Errorf("в очереди %d сессий, ожидается 3", got)
	}
}

func TestSweepAssignsFreedCapacity(t *testing.T) {
	svc, _, notifier := newTestService(t, testChatConfig())

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.Status != domain.ChatSessionStatusWaiting {
		t.Fatalf("статус = %s, ожидается waiting", sess.Status)
	}

	joinTestAgent(t, svc, "agent-1", 1, "")
	svc.sweepQueue()

	got, err := svc.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != domain.ChatSessionStatusActive || got.AgentID != "agent-1" {
		t.Errorf("после обхода очереди: %+v", got)
	}
	if len(svc.QueueSnapshot()) != 0 {
		t.Errorf("очередь должна опустеть после назначения")
	}
	if events := notifier.byKind("assigned"); len(events) != 1 {
		t.Errorf("ожидается одно уведомление о назначении, получено %d", len(events))
	}
}

func TestSweepWaitEscalationFiresOnce(t *testing.T) {
	svc, _, notifier := newTestService(t, testChatConfig())

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	svc.mu.Lock()
	svc.queue[0].EnqueuedAt = time.Now().Add(-svc.cfg.MaxWaitTime - time.Minute)
	svc.mu.Unlock()

	svc.sweepQueue()
	svc.sweepQueue()

	if events := notifier.byKind("wait_escalated"); len(events) != 1 {
		t.Fatalf("эскалация по ожиданию должна сработать один раз, получено %d", len(events))
	}

	got, err := svc.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	// The session keeps waiting in the queue with elevated priority.
	if got.Status != domain.ChatSessionStatusWaiting || got.Priority != domain.ChatPriorityHigh {
		t.Errorf("после эскалации по ожиданию: status=%s priority=%s", got.Status, got.Priority)
	}
	if got.QueuePosition == nil {
		t.Errorf("сессия должна остаться в очереди")
	}
}

func TestSweepTimeoutPolicy(t *testing.T) {
	cfg := testChatConfig()
	cfg.WaitTimeoutAction = config.WaitTimeoutTimeout
	svc, _, notifier := newTestService(t, cfg)

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	svc.mu.Lock()
	svc.queue[0].EnqueuedAt = time.Now().Add(-cfg.MaxWaitTime - time.Minute)
	svc.mu.Unlock()

	svc.sweepQueue()

	got, err := svc.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != domain.ChatSessionStatusTimeout {
		t.Errorf("статус = %s, ожидается timeout", got.Status)
	}
	if got.QueuePosition != nil {
		t.Errorf("queue_position должен быть nil для завершённой сессии")
	}
	if len(svc.QueueSnapshot()) != 0 {
		t.Errorf("очередь должна быть пустой")
	}
	if events := notifier.byKind("ended"); len(events) != 1 {
		t.Errorf("ожидается одно уведомление о завершении, получено %d", len(events))
	}
}

func TestSweepRenumbersAndNotifiesMoved(t *testing.T) {
	cfg := testChatConfig()
	svc, _, notifier := newTestService(t, cfg)

	for i := 0; i < 3; i++ {
		if _, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Клиент"}); err != nil {
			t.Fatalf("StartSession: %v", err)
		}
	}

	// Capacity for exactly one session: the head is assigned, the rest
	// move up and are notified of their new positions.
	joinTestAgent(t, svc, "agent-1", 1, "")
	svc.sweepQueue()

	queue := svc.QueueSnapshot()
	if len(queue) != 2 {
		t.Fatalf("в очереди %d сессий, ожидается 2", len(queue))
	}
	for i, entry := range queue {
		if entry.Position != i+1 {
			t.Errorf("позиция = %d, ожидается %d", entry.Position, i+1)
		}
	}

	if events := notifier.byKind("position"); len(events) != 2 {
		t.Errorf("ожидается 2 уведомления о смене позиции, получено %d", len(events))
	}
}
