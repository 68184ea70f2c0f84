package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinichat/internal/domain"
	"clinichat/pkg/validator"
)

// @Summary Регистрация оператора
// @Description Регистрирует нового оператора поддержки
// @Tags Авторизация
// @Accept json
// @Produce json
// @Param input body domain.RegisterAgentDTO true "Данные для регистрации"
// @Success 201 {object} successResponseBody "Созданный оператор"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 500 {object} errorResponseBody "Внутренняя ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var input domain.RegisterAgentDTO

	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	if !validator.ValidateEmail(input.Email) {
		badRequestResponse(c, "некорректный email")
		return
	}
	if !validator.ValidatePassword(input.Password) {
		badRequestResponse(c, "пароль должен содержать не менее 8 символов")
		return
	}
	input.Name = validator.FormatName(validator.SanitizeString(input.Name))

	agent, err := h.services.Auth.Register(c.Request.Context(), input)
	if err != nil {
		h.logger.Error("ошибка при регистрации", zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	createdResponse(c, agent)
}

// @Summary Вход в систему
// @Description Авторизует оператора и возвращает токены доступа
// @Tags Авторизация
// @Accept json
// @Produce json
// @Param input body domain.LoginRequest true "Данные для входа"
// @Success 200 {object} domain.Tokens "Токены доступа и обновления"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 401 {object} errorResponseBody "Неверные учетные данные"
// @Router /auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var input domain.LoginRequest

	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	tokens, agent, err := h.services.Auth.Login(c.Request.Context(), input)
	if err != nil {
		h.logger.Error("ошибка при входе", zap.Error(err))
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	successResponse(c, http.StatusOK, gin.H{
		"tokens": tokens,
		"agent":  agent,
	})
}

// @Summary Профиль оператора
// @Description Возвращает аккаунт текущего оператора
// @Tags Авторизация
// @Produce json
// @Success 200 {object} successResponseBody "Аккаунт оператора"
// @Failure 404 {object} errorResponseBody "Оператор не найден"
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *Handler) getProfile(c *gin.Context) {
	agentID, err := getAgentID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	agent, err := h.services.Auth.Agent(c.Request.Context(), agentID)
	if err != nil {
		notFoundResponse(c, err.Error())
		return
	}

	successResponse(c, http.StatusOK, agent)
}

// @Summary Обновить профиль
// @Description Обновляет профиль текущего оператора
// @Tags Авторизация
// @Accept json
// @Produce json
// @Param input body domain.UpdateAgentDTO true "Изменяемые поля"
// @Success 200 {object} successResponseBody "Обновлённый аккаунт"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Security ApiKeyAuth
// @Router /auth/me [put]
func (h *Handler) updateProfile(c *gin.Context) {
	agentID, err := getAgentID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	var input domain.UpdateAgentDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}
	if input.Name != nil {
		formatted := validator.FormatName(validator.SanitizeString(*input.Name))
		input.Name = &formatted
	}

	agent, err := h.services.Auth.UpdateProfile(c.Request.Context(), agentID, input)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	successResponse(c, http.StatusOK, agent)
}

// @Summary Справочник операторов
// @Description Возвращает зарегистрированные аккаунты операторов
// @Tags Авторизация
// @Produce json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} successResponseBody "Аккаунты операторов"
// @Security ApiKeyAuth
// @Router /auth/agents [get]
func (h *Handler) listAgentAccounts(c *gin.Context) {
	agents, err := h.services.Auth.ListAgents(c.Request.Context(),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.logger.Error("ошибка при получении операторов", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	successResponse(c, http.StatusOK, agents)
}
