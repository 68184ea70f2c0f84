package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"clinichat/internal/domain"
)

type ChatRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepositoryImpl {
	return &ChatRepositoryImpl{db: db}
}

// Chat Sessions

func (r *ChatRepositoryImpl) CreateSession(ctx context.Context, s *domain.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (
			id, customer_name, customer_contact, clinic_id, doctor_id, service_id,
			status, priority, queue_position, is_emergency, is_agent_assigned,
			agent_id, agent_name, message_count, started_at, first_response_at,
			ended_at, last_activity_at, escalation_triggered, escalated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.CustomerName, s.CustomerContact, s.ClinicID, s.DoctorID, s.ServiceID,
		s.Status, s.Priority, s.QueuePosition, s.IsEmergency, s.IsAgentAssigned,
		nullIfEmpty(s.AgentID), nullIfEmpty(s.AgentName), s.MessageCount, s.StartedAt, s.FirstResponseAt,
		s.EndedAt, s.LastActivityAt, s.EscalationTriggered, s.EscalatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка при создании сессии чата: %w", err)
	}

	return nil
}

func (r *ChatRepositoryImpl) UpdateSession(ctx context.Context, s *domain.ChatSession) error {
	query := `
		UPDATE chat_sessions SET
			status = $2, priority = $3, queue_position = $4, is_emergency = $5,
			is_agent_assigned = $6, agent_id = $7, agent_name = $8, message_count = $9,
			first_response_at = $10, ended_at = $11, last_activity_at = $12,
			escalation_triggered = $13, escalated_at = $14, updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.Status, s.Priority, s.QueuePosition, s.IsEmergency,
		s.IsAgentAssigned, nullIfEmpty(s.AgentID), nullIfEmpty(s.AgentName), s.MessageCount,
		s.FirstResponseAt, s.EndedAt, s.LastActivityAt,
		s.EscalationTriggered, s.EscalatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении сессии чата: %w", err)
	}

	return nil
}

func (r *ChatRepositoryImpl) GetSessionByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	query := `
		SELECT
			id, COALESCE(customer_name, ''), COALESCE(customer_contact, ''),
			COALESCE(clinic_id, ''), COALESCE(doctor_id, ''), COALESCE(service_id, ''),
			status, priority, queue_position, is_emergency, is_agent_assigned,
			COALESCE(agent_id, ''), COALESCE(agent_name, ''), message_count,
			started_at, first_response_at, ended_at, last_activity_at,
			escalation_triggered, escalated_at
		FROM chat_sessions
		WHERE id = $1`

	var s domain.ChatSession
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.CustomerName, &s.CustomerContact,
		&s.ClinicID, &s.DoctorID, &s.ServiceID,
		&s.Status, &s.Priority, &s.QueuePosition, &s.IsEmergency, &s.IsAgentAssigned,
		&s.AgentID, &s.AgentName, &s.MessageCount,
		&s.StartedAt, &s.FirstResponseAt, &s.EndedAt, &s.LastActivityAt,
		&s.EscalationTriggered, &s.EscalatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении сессии чата: %w", err)
	}

	return &s, nil
}

func (r *ChatRepositoryImpl) ListSessions(ctx context.Context, filter domain.ChatSessionFilter) ([]domain.ChatSession, error) {
	query := `
		SELECT
			id, COALESCE(customer_name, ''), COALESCE(customer_contact, ''),
			COALESCE(clinic_id, ''), COALESCE(doctor_id, ''), COALESCE(service_id, ''),
			status, priority, queue_position, is_emergency, is_agent_assigned,
			COALESCE(agent_id, ''), COALESCE(agent_name, ''), message_count,
			started_at, first_response_at, ended_at, last_activity_at,
			escalation_triggered, escalated_at
		FROM chat_sessions`

	where, args := sessionFilterConditions(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении списка сессий: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		var s domain.ChatSession
		err := rows.Scan(
			&s.ID, &s.CustomerName, &s.CustomerContact,
			&s.ClinicID, &s.DoctorID, &s.ServiceID,
			&s.Status, &s.Priority, &s.QueuePosition, &s.IsEmergency, &s.IsAgentAssigned,
			&s.AgentID, &s.AgentName, &s.MessageCount,
			&s.StartedAt, &s.FirstResponseAt, &s.EndedAt, &s.LastActivityAt,
			&s.EscalationTriggered, &s.EscalatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании сессии: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func (r *ChatRepositoryImpl) CountSessions(ctx context.Context, filter domain.ChatSessionFilter) (int64, error) {
	query := "SELECT COUNT(*) FROM chat_sessions"

	where, args := sessionFilterConditions(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка при подсчете сессий: %w", err)
	}

	return count, nil
}

// Chat Messages

func (r *ChatRepositoryImpl) CreateMessage(ctx context.Context, m *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (
			id, session_id, content, message_type, sender_id, sender_name, sender_role,
			delivery_status, attachments, sentiment, sentiment_score,
			sent_at, delivered_at, read_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		m.ID, m.SessionID, m.Content, m.Type, m.SenderID, nullIfEmpty(m.SenderName), m.SenderRole,
		m.DeliveryStatus, m.Attachments, nullIfEmpty(string(m.Sentiment)), m.SentimentScore,
		m.SentAt, m.DeliveredAt, m.ReadAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка при сохранении сообщения: %w", err)
	}

	return nil
}

func (r *ChatRepositoryImpl) ListMessages(ctx context.Context, filter domain.ChatMessageFilter) ([]domain.ChatMessage, error) {
	query := `
		SELECT
			id, session_id, content, message_type, sender_id, COALESCE(sender_name, ''),
			sender_role, delivery_status, COALESCE(attachments, '{}'),
			COALESCE(sentiment, ''), COALESCE(sentiment_score, 0),
			sent_at, delivered_at, read_at
		FROM chat_messages`

	where, args := messageFilterConditions(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY sent_at ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении сообщений: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		err := rows.Scan(
			&m.ID, &m.SessionID, &m.Content, &m.Type, &m.SenderID, &m.SenderName,
			&m.SenderRole, &m.DeliveryStatus, &m.Attachments,
			&m.Sentiment, &m.SentimentScore,
			&m.SentAt, &m.DeliveredAt, &m.ReadAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании сообщения: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (r *ChatRepositoryImpl) CountMessages(ctx context.Context, filter domain.ChatMessageFilter) (int64, error) {
	query := "SELECT COUNT(*) FROM chat_messages"

	where, args := messageFilterConditions(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка при подсчете сообщений: %w", err)
	}

	return count, nil
}

func sessionFilterConditions(filter domain.ChatSessionFilter) ([]string, []interface{}) {
	var where []string
	var args []interface{}

	if filter.ClinicID != nil {
		args = append(args, *filter.ClinicID)
		where = append(where, fmt.Sprintf("clinic_id = $%d", len(args)))
	}
	if filter.AgentID != nil {
		args = append(args, *filter.AgentID)
		where = append(where, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	return where, args
}

func messageFilterConditions(filter domain.ChatMessageFilter) ([]string, []interface{}) {
	var where []string
	var args []interface{}

	if filter.SessionID != nil {
		args = append(args, *filter.SessionID)
		where = append(where, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.SenderID != nil {
		args = append(args, *filter.SenderID)
		where = append(where, fmt.Sprintf("sender_id = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		where = append(where, fmt.Sprintf("message_type = $%d", len(args)))
	}

	return where, args
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
