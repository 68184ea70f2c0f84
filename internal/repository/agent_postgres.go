package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"clinichat/internal/domain"
)

type AgentRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewAgentRepository(db *pgxpool.Pool) *AgentRepositoryImpl {
	return &AgentRepositoryImpl{db: db}
}

func (r *AgentRepositoryImpl) Create(ctx context.Context, a *domain.Agent) error {
	query := `
		INSERT INTO agents (id, email, name, password_hash, clinic_id, specialties, languages, max_chats, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.Email, a.Name, a.PasswordHash, nullIfEmpty(a.ClinicID),
		a.Specialties, a.Languages, a.MaxChats, a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("ошибка при создании оператора: %w", err)
	}

	return nil
}

func (r *AgentRepositoryImpl) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *AgentRepositoryImpl) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	return r.getOne(ctx, "email = $1", email)
}

func (r *AgentRepositoryImpl) getOne(ctx context.Context, condition string, arg interface{}) (*domain.Agent, error) {
	query := `
		SELECT id, email, name, password_hash, COALESCE(clinic_id, ''),
			COALESCE(specialties, '{}'), COALESCE(languages, '{}'),
			max_chats, is_active, created_at, updated_at
		FROM agents
		WHERE ` + condition

	var a domain.Agent
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.ClinicID,
		&a.Specialties, &a.Languages,
		&a.MaxChats, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении оператора: %w", err)
	}

	return &a, nil
}

func (r *AgentRepositoryImpl) Update(ctx context.Context, a *domain.Agent) error {
	query := `
		UPDATE agents SET
			name = $2, clinic_id = $3, specialties = $4, languages = $5,
			max_chats = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.Name, nullIfEmpty(a.ClinicID), a.Specialties, a.Languages,
		a.MaxChats, a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении оператора: %w", err)
	}

	return nil
}

func (r *AgentRepositoryImpl) List(ctx context.Context, limit, offset int) ([]domain.Agent, error) {
	query := `
		SELECT id, email, name, password_hash, COALESCE(clinic_id, ''),
			COALESCE(specialties, '{}'), COALESCE(languages, '{}'),
			max_chats, is_active, created_at, updated_at
		FROM agents
		ORDER BY created_at
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limitOrDefault(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении списка операторов: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var a domain.Agent
		err := rows.Scan(
			&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.ClinicID,
			&a.Specialties, &a.Languages,
			&a.MaxChats, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании оператора: %w", err)
		}
		agents = append(agents, a)
	}

	return agents, rows.Err()
}
