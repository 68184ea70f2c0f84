package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinichat/internal/domain"
)

// @Summary Список сессий чата
// @Description Возвращает сессии чата из архива с фильтрацией
// @Tags Чат
// @Produce json
// @Param clinic_id query string false "ID клиники"
// @Param agent_id query string false "ID оператора"
// @Param status query string false "Статус сессии"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} paginatedResponse "Сессии чата"
// @Failure 500 {object} errorResponseBody "Внутренняя ошибка сервера"
// @Security ApiKeyAuth
// @Router /chat/sessions [get]
func (h *Handler) listSessions(c *gin.Context) {
	filter := domain.ChatSessionFilter{
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	}

	if v := c.Query("clinic_id"); v != "" {
		filter.ClinicID = &v
	}
	if v := c.Query("agent_id"); v != "" {
		filter.AgentID = &v
	}
	if v := c.Query("status"); v != "" {
		status := domain.ChatSessionStatus(v)
		filter.Status = &status
	}

	sessions, total, err := h.services.LiveChat.ListSessions(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("ошибка при получении сессий", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	page := 1
	if filter.Limit > 0 {
		page = filter.Offset/filter.Limit + 1
	}

	paginatedSuccessResponse(c, sessions, int(total), page, filter.Limit)
}

// @Summary Сессия чата
// @Description Возвращает сессию по идентификатору, включая архивные
// @Tags Чат
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} successResponseBody "Сессия чата"
// @Failure 404 {object} errorResponseBody "Сессия не найдена"
// @Security ApiKeyAuth
// @Router /chat/sessions/{id} [get]
func (h *Handler) getSession(c *gin.Context) {
	sess, err := h.services.LiveChat.SessionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundResponse(c, err.Error())
		return
	}

	successResponse(c, http.StatusOK, sess)
}

// @Summary История сообщений
// @Description Возвращает сообщения сессии из архива
// @Tags Чат
// @Produce json
// @Param id path string true "ID сессии"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} paginatedResponse "Сообщения"
// @Failure 404 {object} errorResponseBody "Сессия не найдена"
// @Security ApiKeyAuth
// @Router /chat/sessions/{id}/messages [get]
func (h *Handler) getMessages(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	messages, total, err := h.services.LiveChat.History(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			notFoundResponse(c, err.Error())
			return
		}
		h.logger.Error("ошибка при получении сообщений", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}

	paginatedSuccessResponse(c, messages, int(total), page, limit)
}

// @Summary Назначить оператора
// @Description Назначает текущего оператора на сессию
// @Tags Чат
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} successResponseBody "Сессия чата"
// @Failure 404 {object} errorResponseBody "Сессия не найдена"
// @Failure 409 {object} errorResponseBody "Оператор недоступен"
// @Security ApiKeyAuth
// @Router /chat/sessions/{id}/assign [post]
func (h *Handler) assignSession(c *gin.Context) {
	agentID, err := getAgentID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	sess, err := h.services.LiveChat.AssignAgent(c.Request.Context(), c.Param("id"), agentID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrAgentNotFound):
			notFoundResponse(c, err.Error())
		case errors.Is(err, domain.ErrAgentUnavailable), errors.Is(err, domain.ErrAlreadyAssigned):
			errorResponse(c, http.StatusConflict, err.Error())
		default:
			errorResponse(c, http.StatusBadRequest, err.Error())
		}
		return
	}

	successResponse(c, http.StatusOK, sess)
}

// @Summary Завершить сессию
// @Description Завершает сессию чата от имени оператора
// @Tags Чат
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} successResponseBody "Завершённая сессия"
// @Failure 404 {object} errorResponseBody "Сессия не найдена"
// @Security ApiKeyAuth
// @Router /chat/sessions/{id}/end [post]
func (h *Handler) endSession(c *gin.Context) {
	sess, err := h.services.LiveChat.EndSession(c.Request.Context(), c.Param("id"), domain.SenderRoleAgent)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			notFoundResponse(c, err.Error())
			return
		}
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	successResponse(c, http.StatusOK, sess)
}

// @Summary Очередь ожидания
// @Description Возвращает текущее состояние очереди
// @Tags Чат
// @Produce json
// @Success 200 {object} successResponseBody "Очередь"
// @Security ApiKeyAuth
// @Router /chat/queue [get]
func (h *Handler) getQueue(c *gin.Context) {
	successResponse(c, http.StatusOK, h.services.LiveChat.QueueSnapshot())
}

// @Summary Операторы
// @Description Возвращает текущее состояние реестра операторов
// @Tags Чат
// @Produce json
// @Success 200 {object} successResponseBody "Операторы"
// @Security ApiKeyAuth
// @Router /chat/agents [get]
func (h *Handler) getAgents(c *gin.Context) {
	successResponse(c, http.StatusOK, h.services.LiveChat.AgentsSnapshot())
}

// @Summary Статус работы
// @Description Сообщает, открыт ли чат по рабочим часам
// @Tags Чат
// @Produce json
// @Success 200 {object} successResponseBody "Статус"
// @Security ApiKeyAuth
// @Router /chat/status [get]
func (h *Handler) getOperatingStatus(c *gin.Context) {
	successResponse(c, http.StatusOK, gin.H{
		"open":     h.services.LiveChat.IsOpen(),
		"timezone": h.config.Chat.Timezone,
	})
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil || v < 0 {
		return def
	}
	return v
}
