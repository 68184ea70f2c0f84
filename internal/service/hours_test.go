package service

import (
	"context"
	"testing"
	"time"

	"clinichat/internal/domain"
)

func TestWithinWorkingHours(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		at    string
		want  bool
	}{
		{"внутри окна", "09:00", "18:00", "12:30", true},
		{"до открытия", "09:00", "18:00", "08:59", false},
		{"после закрытия", "09:00", "18:00", "18:00", false},
		{"граница открытия", "09:00", "18:00", "09:00", true},
		{"ночное окно внутри", "22:00", "06:00", "23:30", true},
		{"ночное окно под утро", "22:00", "06:00", "05:59", true},
		{"ночное окно днём", "22:00", "06:00", "12:00", false},
		{"пустое окно всегда открыто", "00:00", "00:00", "03:00", true},
		{"нечитаемое окно всегда открыто", "abc", "18:00", "03:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testChatConfig()
			cfg.WorkingHoursStart = tt.start
			cfg.WorkingHoursEnd = tt.end
			svc, _, _ := newTestService(t, cfg)

			at, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+tt.at)
			if err != nil {
				t.Fatalf("time.Parse: %v", err)
			}

			if got := svc.withinWorkingHours(at); got != tt.want {
				t.Errorf("withinWorkingHours(%s) = %v, ожидается %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestOperatingHoursTransitionBroadcastsOnce(t *testing.T) {
	svc, _, notifier := newTestService(t, testChatConfig())

	svc.mu.Lock()
	svc.open = false
	svc.mu.Unlock()

	// A session created while closed waits outside the queue.
	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	now := time.Now()
	svc.checkOperatingHours(now)
	svc.checkOperatingHours(now.Add(time.Minute))

	events := notifier.byKind("operating_status")
	if len(events) != 1 || !events[0].open {
		t.Fatalf("ожидается один переход в открытое состояние, получено %+v", events)
	}

	// On opening, sessions that arrived while closed join the queue.
	got, err := svc.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.QueuePosition == nil || *got.QueuePosition != 1 {
		t.Errorf("queue_position = %v, ожидается 1 после открытия", got.QueuePosition)
	}
	if positions := notifier.byKind("position"); len(positions) != 1 {
		t.Errorf("ожидается одно уведомление о позиции, получено %d", len(positions))
	}
}

func TestOperatingHoursQueueOrderOnOpen(t *testing.T) {
	svc, _, _ := newTestService(t, testChatConfig())

	svc.mu.Lock()
	svc.open = false
	svc.mu.Unlock()

	first, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Первый"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	second, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Второй"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	svc.checkOperatingHours(time.Now())

	queue := svc.QueueSnapshot()
	if len(queue) != 2 {
		t.Fatalf("в очереди %d сессий, ожидается 2", len(queue))
	}
	if queue[0].SessionID != first.ID || queue[1].SessionID != second.ID {
		t.Errorf("очередь не сохранила порядок прихода: %s, %s", queue[0].SessionID, queue[1].SessionID)
	}
}

func TestOperatingHoursOpenSendsQueuedNotice(t *testing.T) {
	svc, _, notifier := newTestService(t, testChatConfig())

	svc.mu.Lock()
	svc.open = false
	svc.mu.Unlock()

	sess, _, err := svc.StartSession(context.Background(), domain.StartChatDTO{CustomerName: "Анна"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	svc.checkOperatingHours(time.Now())

	// Each session queued on opening gets a personal system notice in
	// addition to the global status broadcast.
	notices := notifier.byKind("system")
	if len(notices) != 1 || notices[0].sessionID != sess.ID {
		t.Fatalf("ожидается одно системное сообщение для %s, получено %+v", sess.ID, notices)
	}

	got, err := svc.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	// The offline greeting plus the queued notice.
	if got.MessageCount != 2 {
		t.Errorf("message_count = %d, ожидается 2", got.MessageCount)
	}
}
