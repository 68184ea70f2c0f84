package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinichat/config"
	"clinichat/internal/domain"
	"clinichat/internal/repository"
	"clinichat/pkg/auth"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	AgentID string `json:"agent_id"`
}

type AuthServiceImpl struct {
	agentRepo repository.AgentRepository
	jwtConfig config.JWTConfig
	logger    *zap.Logger
}

func NewAuthService(agentRepo repository.AgentRepository, jwtConfig config.JWTConfig, logger *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		agentRepo: agentRepo,
		jwtConfig: jwtConfig,
		logger:    logger,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, dto domain.RegisterAgentDTO) (*domain.Agent, error) {
	existing, err := s.agentRepo.GetByEmail(ctx, dto.Email)
	if err == nil && existing != nil {
		return nil, errors.New("оператор с таким email уже существует")
	}

	hash, err := auth.HashPassword(dto.Password)
	if err != nil {
		s.logger.Error("ошибка при хешировании пароля", zap.Error(err))
		return nil, errors.New("ошибка при регистрации оператора")
	}

	agent := &domain.Agent{
		ID:           uuid.New().String(),
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: hash,
		ClinicID:     dto.ClinicID,
		Specialties:  dto.Specialties,
		Languages:    dto.Languages,
		MaxChats:     dto.MaxChats,
		IsActive:     true,
	}

	if err := s.agentRepo.Create(ctx, agent); err != nil {
		s.logger.Error("ошибка при создании оператора", zap.Error(err))
		return nil, errors.New("ошибка при регистрации оператора")
	}

	return agent, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, dto domain.LoginRequest) (*domain.Tokens, *domain.Agent, error) {
	agent, err := s.agentRepo.GetByEmail(ctx, dto.Email)
	if err != nil {
		s.logger.Warn("оператор не найден", zap.String("email", dto.Email), zap.Error(err))
		return nil, nil, errors.New("неверный логин или пароль")
	}

	ok, err := auth.VerifyPassword(dto.Password, agent.PasswordHash)
	if err != nil || !ok {
		return nil, nil, errors.New("неверный логин или пароль")
	}

	if !agent.IsActive {
		return nil, nil, errors.New("аккаунт деактивирован")
	}

	accessToken, err := s.generateToken(agent.ID, s.jwtConfig.AccessTokenTTL)
	if err != nil {
		s.logger.Error("ошибка генерации токена", zap.Error(err))
		return nil, nil, errors.New("ошибка при аутентификации")
	}

	refreshToken, err := auth.GenerateRandomToken(32)
	if err != nil {
		return nil, nil, errors.New("ошибка при аутентификации")
	}

	return &domain.Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, agent, nil
}

func (s *AuthServiceImpl) ParseToken(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("неверный метод подписи токена")
		}
		return []byte(s.jwtConfig.SigningKey), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return "", errors.New("недействительный токен")
	}

	return claims.AgentID, nil
}

// Agent returns the account behind a parsed token.
func (s *AuthServiceImpl) Agent(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := s.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, errors.New("оператор не найден")
	}
	return agent, nil
}

// UpdateProfile applies the non-nil fields of the DTO to the account.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, agentID string, dto domain.UpdateAgentDTO) (*domain.Agent, error) {
	agent, err := s.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, errors.New("оператор не найден")
	}

	if dto.Name != nil {
		agent.Name = *dto.Name
	}
	if dto.ClinicID != nil {
		agent.ClinicID = *dto.ClinicID
	}
	if dto.Specialties != nil {
		agent.Specialties = dto.Specialties
	}
	if dto.Languages != nil {
		agent.Languages = dto.Languages
	}
	if dto.MaxChats != nil && *dto.MaxChats > 0 {
		agent.MaxChats = *dto.MaxChats
	}

	if err := s.agentRepo.Update(ctx, agent); err != nil {
		s.logger.Error("ошибка при обновлении оператора", zap.Error(err))
		return nil, errors.New("ошибка при обновлении профиля")
	}

	return agent, nil
}

func (s *AuthServiceImpl) ListAgents(ctx context.Context, limit, offset int) ([]domain.Agent, error) {
	return s.agentRepo.List(ctx, limit, offset)
}

func (s *AuthServiceImpl) generateToken(agentID string, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		AgentID: agentID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.SigningKey))
}
