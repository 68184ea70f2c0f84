package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clinichat/internal/domain"
	"clinichat/internal/service"
	"clinichat/pkg/validator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatHub maintains the set of active connections and routes frames
// between clients and the live chat engine. It implements
// service.ChatNotifier so the engine can push events back out.
type ChatHub struct {
	// Registered connections by connection ID
	clients map[string]*Client

	// Customer connection for each live session
	customerBySession map[string]*Client

	// Agent connections by agent ID
	agentClients map[string]*Client

	// Register requests from new connections
	register chan *Client

	// Unregister requests from closing connections
	unregister chan *Client

	logger   *zap.Logger
	services *service.Services

	mutex sync.RWMutex
}

func NewChatHub(logger *zap.Logger, services *service.Services) *ChatHub {
	return &ChatHub{
		clients:           make(map[string]*Client),
		customerBySession: make(map[string]*Client),
		agentClients:      make(map[string]*Client),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		logger:            logger,
		services:          services,
	}
}

// Run processes connection registration and teardown.
func (h *ChatHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.ID] = client
			h.mutex.Unlock()
			h.logger.Info("клиент подключился", zap.String("conn_id", client.ID))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.ID]; !ok {
				h.mutex.Unlock()
				continue
			}
			delete(h.clients, client.ID)
			if client.SessionID != "" && h.customerBySession[client.SessionID] == client {
				delete(h.customerBySession, client.SessionID)
			}
			if client.AgentID != "" && h.agentClients[client.AgentID] == client {
				delete(h.agentClients, client.AgentID)
			}
			client.closeSend()
			h.mutex.Unlock()

			// Disconnection never terminates a session; the engine is
			// told so operators can see the customer dropped.
			if client.SessionID != "" {
				h.services.LiveChat.CustomerDisconnected(client.SessionID)
				h.broadcastToAgents(encodeFrame(FrameCustomerDisconnected, CustomerDisconnectedPayload{
					SessionID: client.SessionID,
				}))
			}
			if client.AgentID != "" {
				h.services.LiveChat.AgentDisconnected(client.AgentID)
			}
			h.logger.Info("клиент отключился", zap.String("conn_id", client.ID))
		}
	}
}

// HandleWebSocket upgrades an HTTP request to a chat connection.
func (h *ChatHub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("не удалось установить веб-сокет соединение", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  h,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	h.sendToClient(client, encodeFrame(FrameConnectionEstablished, gin.H{
		"connection_id": client.ID,
		"open":          h.services.LiveChat.IsOpen(),
	}))
}

// dispatch routes one inbound frame. A panic in a handler is converted
// to an ERROR frame; the dispatch loop must survive any single frame.
func (h *ChatHub) dispatch(c *Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("паника при обработке сообщения",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			h.sendToClient(c, errorFrame(ErrCodeMessageError, "внутренняя ошибка при обработке сообщения"))
		}
	}()

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "не удалось разобрать сообщение"))
		return
	}

	switch frame.Type {
	case FrameStartChat:
		h.handleStartChat(c, frame.Data)
	case FrameSendMessage:
		h.handleSendMessage(c, frame.Data)
	case FrameJoinAsAgent:
		h.handleJoinAgent(c, frame.Data)
	case FrameAgentAssignment:
		h.handleAgentAssignment(c, frame.Data)
	case FrameTypingIndicator:
		h.handleTyping(c, frame.Data)
	case FrameEndChat:
		h.handleEndChat(c, frame.Data)
	case FrameTransferSession:
		h.handleTransfer(c, frame.Data)
	case FrameRequestHistory:
		h.handleHistory(c, frame.Data)
	case FramePing:
		h.sendToClient(c, encodeFrame(FramePong, HeartbeatPayload{Timestamp: time.Now()}))
	default:
		h.sendToClient(c, errorFrame(ErrCodeUnknownType, "неизвестный тип сообщения: "+frame.Type))
	}
}

func (h *ChatHub) handleStartChat(c *Client, data json.RawMessage) {
	var dto domain.StartChatDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "неверный формат запроса на создание чата"))
		return
	}
	dto.CustomerName = validator.FormatName(validator.SanitizeString(dto.CustomerName))
	dto.Topic = validator.SanitizeString(dto.Topic)

	sess, greeting, err := h.services.LiveChat.StartSession(context.Background(), dto)
	if err != nil {
		h.sendToClient(c, errorFrame(ErrCodeSessionStartError, err.Error()))
		return
	}

	h.mutex.Lock()
	c.SessionID = sess.ID
	c.Role = domain.SenderRoleCustomer
	h.customerBySession[sess.ID] = c
	h.mutex.Unlock()

	h.sendToClient(c, encodeFrame(FrameChatStarted, ChatStartedPayload{
		Session:  sess,
		Greeting: greeting,
		Open:     h.services.LiveChat.IsOpen(),
	}))
}

func (h *ChatHub) handleSendMessage(c *Client, data json.RawMessage) {
	var dto domain.SendMessageDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "неверный формат сообщения"))
		return
	}
	if dto.SessionID == "" && c.SessionID != "" {
		dto.SessionID = c.SessionID
	}
	if dto.SenderRole == "" {
		dto.SenderRole = c.Role
	}
	dto.Content = validator.SanitizeString(dto.Content)
	if dto.Content == "" && len(dto.Attachments) == 0 {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "пустое сообщение"))
		return
	}

	msg, sess, err := h.services.LiveChat.HandleMessage(context.Background(), dto)
	if err != nil {
		h.sendToClient(c, h.errorFrameFor(err, ErrCodeMessageError))
		return
	}

	h.sendToSession(sess, encodeFrame(FrameNewMessage, msg))
}

func (h *ChatHub) handleJoinAgent(c *Client, data json.RawMessage) {
	var dto domain.JoinAgentDTO
	if err := json.Unmarshal(data, &dto); err != nil || dto.AgentID == "" {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "неверный формат запроса оператора"))
		return
	}
	dto.Name = validator.FormatName(validator.SanitizeString(dto.Name))

	agent, waiting, err := h.services.LiveChat.JoinAgent(context.Background(), dto)
	if err != nil {
		h.sendToClient(c, errorFrame(ErrCodeAgentJoinError, err.Error()))
		return
	}

	h.mutex.Lock()
	c.AgentID = agent.ID
	c.Role = domain.SenderRoleAgent
	h.agentClients[agent.ID] = c
	h.mutex.Unlock()

	h.sendToClient(c, encodeFrame(FrameAgentJoined, AgentJoinedPayload{
		Agent:           agent,
		WaitingSessions: waiting,
	}))
}

func (h *ChatHub) handleAgentAssignment(c *Client, data json.RawMessage) {
	var p AgentAssignmentPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "неверный формат запроса на назначение"))
		return
	}
	if p.AgentID == "" {
		p.AgentID = c.AgentID
	}

	// SessionAssigned is delivered to both participants by the engine
	// through the notifier; only errors are answered here.
	if _, err := h.services.LiveChat.AssignAgent(context.Background(), p.SessionID, p.AgentID); err != nil {
		h.sendToClient(c, h.errorFrameFor(err, ErrCodeAssignmentError))
	}
}

func (h *ChatHub) handleTyping(c *Client, data json.RawMessage) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "неверный формат индикатора набора"))
		return
	}
	if p.SessionID == "" {
		p.SessionID = c.SessionID
	}
	if p.Role == "" {
		p.Role = c.Role
	}

	h.services.LiveChat.SetTyping(domain.TypingIndicator{
		SessionID: p.SessionID,
		UserID:    p.UserID,
		UserName:  p.UserName,
		Role:      p.Role,
		IsTyping:  p.IsTyping,
	})
}

func (h *ChatHub) handleEndChat(c *Client, data json.RawMessage) {
	var p EndChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "неверный формат запроса на завершение"))
		return
	}
	if p.SessionID == "" {
		p.SessionID = c.SessionID
	}
	if p.EndedBy == "" {
		p.EndedBy = c.Role
	}

	if _, err := h.services.LiveChat.EndSession(context.Background(), p.SessionID, p.EndedBy); err != nil {
		h.sendToClient(c, h.errorFrameFor(err, ErrCodeSessionEndError))
	}
}

func (h *ChatHub) handleTransfer(c *Client, data json.RawMessage) {
	var p TransferPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" || p.ToAgentID == "" {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "неверный формат запроса на передачу"))
		return
	}

	if _, err := h.services.LiveChat.TransferSession(context.Background(), p.SessionID, p.ToAgentID); err != nil {
		h.sendToClient(c, h.errorFrameFor(err, ErrCodeAssignmentError))
	}
}

func (h *ChatHub) handleHistory(c *Client, data json.RawMessage) {
	var p HistoryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.sendToClient(c, errorFrame(ErrCodeInvalidFormat, "неверный формат запроса истории"))
		return
	}
	if p.SessionID == "" {
		p.SessionID = c.SessionID
	}

	messages, total, err := h.services.LiveChat.History(context.Background(), p.SessionID, p.Limit, p.Offset)
	if err != nil {
		h.sendToClient(c, h.errorFrameFor(err, ErrCodeMessageError))
		return
	}

	h.sendToClient(c, encodeFrame(FrameChatHistory, ChatHistoryPayload{
		SessionID: p.SessionID,
		Messages:  messages,
		Total:     total,
	}))
}

// errorFrameFor maps engine errors onto protocol error codes.
func (h *ChatHub) errorFrameFor(err error, fallback string) []byte {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return errorFrame(ErrCodeSessionNotFound, err.Error())
	case errors.Is(err, domain.ErrAgentNotFound), errors.Is(err, domain.ErrAgentUnavailable):
		return errorFrame(ErrCodeAgentUnavailable, err.Error())
	default:
		return errorFrame(fallback, err.Error())
	}
}

// Notifier implementation. These are called by the engine after it has
// released its own lock.

func (h *ChatHub) SessionAssigned(sess *domain.ChatSession, agent *domain.AgentStatus) {
	frame := encodeFrame(FrameAgentAssigned, AgentAssignedPayload{Session: sess, Agent: agent})
	h.sendToCustomer(sess.ID, frame)
	h.sendToAgent(agent.ID, frame)
}

func (h *ChatHub) SessionEscalated(sess *domain.ChatSession, reason string) {
	frame := encodeFrame(FrameSessionEscalated, SessionEscalatedPayload{Session: sess, Reason: reason})
	h.sendToCustomer(sess.ID, frame)
	h.broadcastToAgents(frame)
}

func (h *ChatHub) WaitTimeEscalated(entry *domain.QueueEntry) {
	frame := encodeFrame(FrameWaitTimeEscalation, entry)
	h.sendToCustomer(entry.SessionID, frame)
	h.broadcastToAgents(frame)
}

func (h *ChatHub) QueuePositionChanged(entry *domain.QueueEntry) {
	h.sendToCustomer(entry.SessionID, encodeFrame(FrameQueuePosition, entry))
}

func (h *ChatHub) SessionEnded(sess *domain.ChatSession) {
	frame := encodeFrame(FrameChatEnded, sess)
	h.sendToCustomer(sess.ID, frame)
	if sess.AgentID != "" {
		h.sendToAgent(sess.AgentID, frame)
	}
}

func (h *ChatHub) SystemMessage(sessionID string, msg *domain.ChatMessage) {
	frame := encodeFrame(FrameNewMessage, msg)
	h.sendToCustomer(sessionID, frame)
	if sess, err := h.services.LiveChat.GetSession(sessionID); err == nil && sess.AgentID != "" {
		h.sendToAgent(sess.AgentID, frame)
	}
}

func (h *ChatHub) TypingChanged(ind *domain.TypingIndicator) {
	frame := encodeFrame(FrameTypingIndicator, ind)
	if ind.Role == domain.SenderRoleCustomer {
		if sess, err := h.services.LiveChat.GetSession(ind.SessionID); err == nil && sess.AgentID != "" {
			h.sendToAgent(sess.AgentID, frame)
		}
		return
	}
	h.sendToCustomer(ind.SessionID, frame)
}

func (h *ChatHub) OperatingStatusChanged(open bool, message string) {
	h.broadcast(encodeFrame(FrameOperatingStatusChanged, OperatingStatusPayload{
		Open:    open,
		Message: message,
	}))
}

func (h *ChatHub) Heartbeat() {
	h.broadcast(encodeFrame(FrameHeartbeat, HeartbeatPayload{Timestamp: time.Now()}))
}

// Delivery helpers. A full send buffer drops the frame; the connection
// is cleaned up in the hub loop when it closes.

func (h *ChatHub) sendToClient(c *Client, frame []byte) {
	if !c.trySend(frame) {
		h.logger.Warn("сообщение отброшено: соединение закрыто или буфер переполнен",
			zap.String("conn_id", c.ID))
	}
}

func (h *ChatHub) sendToCustomer(sessionID string, frame []byte) {
	h.mutex.RLock()
	client, ok := h.customerBySession[sessionID]
	h.mutex.RUnlock()
	if ok {
		h.sendToClient(client, frame)
	}
}

func (h *ChatHub) sendToAgent(agentID string, frame []byte) {
	h.mutex.RLock()
	client, ok := h.agentClients[agentID]
	h.mutex.RUnlock()
	if ok {
		h.sendToClient(client, frame)
	}
}

// sendToSession delivers a frame to the customer and the assigned agent.
func (h *ChatHub) sendToSession(sess *domain.ChatSession, frame []byte) {
	h.sendToCustomer(sess.ID, frame)
	if sess.AgentID != "" {
		h.sendToAgent(sess.AgentID, frame)
	}
}

func (h *ChatHub) broadcastToAgents(frame []byte) {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.agentClients))
	for _, c := range h.agentClients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		h.sendToClient(c, frame)
	}
}

func (h *ChatHub) broadcast(frame []byte) {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		h.sendToClient(c, frame)
	}
}
