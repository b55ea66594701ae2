// Package gateway accepts real-time connections, authenticates them, manages
// room subscriptions, and fans events out to room members. One handler
// function per event name; handlers for one connection run in receipt order,
// handlers for different connections interleave freely.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/domain"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/protocol"
	"chat-gateway/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192

	handlerTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Gateway struct {
	hub       *Hub
	registry  presence.Registry
	store     store.Store
	validator auth.Validator
	pipeline  *Pipeline
	bridge    *Bridge
	logger    *zap.Logger
	now       func() time.Time
}

// New wires the gateway with its collaborators. bridge may be nil for
// single-instance deployments and tests.
func New(
	hub *Hub,
	registry presence.Registry,
	st store.Store,
	validator auth.Validator,
	pipeline *Pipeline,
	bridge *Bridge,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		hub:       hub,
		registry:  registry,
		store:     st,
		validator: validator,
		pipeline:  pipeline,
		bridge:    bridge,
		logger:    logger,
		now:       time.Now,
	}
}

func (g *Gateway) Hub() *Hub { return g.hub }

// HandleWS is the connection handshake: extract the bearer credential,
// validate it, upgrade, then auto-join the user's persisted chats. A failed
// handshake terminates the connection with no retry at this layer.
func (g *Gateway) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if h := c.GetHeader("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
			token = h[7:]
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	identity, err := g.validator.ValidateAccess(ctx, token)
	cancel()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}

	// Client-declared display metadata, re-validated identity on every
	// connect; nothing is cached across reconnects.
	userName := c.Query("name")
	if userName == "" {
		userName = identity.Name
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	s := NewSession(conn, identity.UserID, userName)
	g.Connect(s)

	go g.writePump(s)
	g.readPump(s)
}

// Connect registers an authenticated session, auto-joins its persisted
// chats, and announces the online transition. Split from HandleWS so tests
// can drive sessions without a network connection.
func (g *Gateway) Connect(s *Session) {
	g.hub.Register(s)
	wsConnectionsTotal.Inc()
	wsActiveConnections.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	// Membership lookup failure leaves the connection authenticated but
	// unjoined; an explicit join-chat request remains available.
	chats, err := g.store.GetUserChats(ctx, s.UserID)
	if err != nil {
		g.logger.Warn("membership lookup failed, connection stays unjoined",
			zap.String("userId", s.UserID.String()),
			zap.Error(err))
	} else {
		for _, chat := range chats {
			g.joinRoom(ctx, s, chat.ChatID)
		}
	}

	if err := g.registry.SetStatus(ctx, s.UserID, domain.StatusOnline); err != nil {
		g.logger.Warn("failed to set online status", zap.Error(err))
	}
	g.broadcastStatus(ctx, s, s.UserID, domain.StatusOnline)

	g.logger.Info("session connected",
		zap.String("userId", s.UserID.String()),
		zap.String("sessionId", s.ID.String()),
		zap.Int("autoJoined", len(chats)))
}

func (g *Gateway) joinRoom(ctx context.Context, s *Session, chatID uuid.UUID) {
	g.hub.JoinRoom(chatID, s)
	s.Join(chatID)
	if err := g.registry.AddToRoom(ctx, chatID, s.UserID); err != nil {
		g.logger.Warn("failed to record room membership",
			zap.String("chatId", chatID.String()),
			zap.Error(err))
	}
}

func (g *Gateway) readPump(s *Session) {
	defer func() {
		g.Disconnect(s)
		if s.conn != nil {
			s.conn.Close()
		}
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			g.sendError(s, &domain.ValidationError{Reason: "malformed event"}, "")
			continue
		}
		g.Dispatch(s, &env)
	}
}

func (g *Gateway) writePump(s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if s.conn != nil {
			s.conn.Close()
		}
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Dispatch routes one inbound event to its handler. Any handler error is
// converted into a scoped error event for the originating connection; it
// never takes down the gateway or touches other connections' state.
func (g *Gateway) Dispatch(s *Session, env *protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("recovered from handler panic",
				zap.Any("panic", r),
				zap.String("event", string(env.Type)))
			g.sendError(s, errors.New("internal error"), string(env.Type))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var err error
	switch env.Type {
	case protocol.EventJoinChat:
		err = g.handleJoinChat(ctx, s, env)
	case protocol.EventSendMessage:
		err = g.pipeline.Submit(ctx, s, env)
	case protocol.EventTyping:
		err = g.handleTyping(ctx, s, env)
	case protocol.EventReadMessage:
		err = g.handleReadMessage(ctx, s, env)
	case protocol.EventChangeStatus:
		err = g.handleChangeStatus(ctx, s, env)
	case protocol.EventPing:
		s.SendEvent(&protocol.Envelope{Type: protocol.EventPong, Payload: env.Payload})
	default:
		g.logger.Warn("unknown event type", zap.String("type", string(env.Type)))
	}

	if err != nil {
		g.sendError(s, err, string(env.Type))
	}
}

// handleJoinChat validates persisted membership before subscribing. Denial
// goes to the requester only; success is announced to the other members.
func (g *Gateway) handleJoinChat(ctx context.Context, s *Session, env *protocol.Envelope) error {
	chatID, err := uuid.Parse(env.ChatID)
	if err != nil {
		return &domain.ValidationError{Reason: "invalid chat id"}
	}

	ok, err := g.store.IsParticipant(ctx, chatID, s.UserID)
	if err != nil {
		return &domain.PersistenceError{Op: "membership lookup", Err: err}
	}
	if !ok {
		return &domain.AuthorizationError{ChatID: env.ChatID, UserID: s.UserID.String()}
	}

	g.joinRoom(ctx, s, chatID)

	data, _ := json.Marshal(protocol.Envelope{
		Type:      protocol.EventUserJoinedChat,
		ChatID:    env.ChatID,
		UserID:    s.UserID.String(),
		UserName:  s.UserName,
		Timestamp: g.now(),
	})
	g.broadcastRoom(ctx, chatID, data, s)
	return nil
}

// handleTyping requires an existing room subscription, updates the registry,
// and notifies the room excluding the sender.
func (g *Gateway) handleTyping(ctx context.Context, s *Session, env *protocol.Envelope) error {
	chatID, err := uuid.Parse(env.ChatID)
	if err != nil {
		return &domain.ValidationError{Reason: "invalid chat id"}
	}
	if !s.InRoom(chatID) {
		return &domain.AuthorizationError{ChatID: env.ChatID, UserID: s.UserID.String()}
	}

	if err := g.registry.SetTyping(ctx, chatID, s.UserID, env.IsTyping); err != nil {
		g.logger.Warn("failed to update typing state", zap.Error(err))
	}
	typingEventsTotal.Inc()

	data, _ := json.Marshal(protocol.Envelope{
		Type:     protocol.EventUserTyping,
		ChatID:   env.ChatID,
		UserID:   s.UserID.String(),
		UserName: s.UserName,
		IsTyping: env.IsTyping,
	})
	g.broadcastRoom(ctx, chatID, data, s)
	return nil
}

// handleReadMessage marks one message or all unread messages as read and
// broadcasts including the sender, so the same user's other tabs update too.
func (g *Gateway) handleReadMessage(ctx context.Context, s *Session, env *protocol.Envelope) error {
	chatID, err := uuid.Parse(env.ChatID)
	if err != nil {
		return &domain.ValidationError{Reason: "invalid chat id"}
	}
	if !s.InRoom(chatID) {
		return &domain.AuthorizationError{ChatID: env.ChatID, UserID: s.UserID.String()}
	}

	if env.MessageID != "" {
		messageID, err := uuid.Parse(env.MessageID)
		if err != nil {
			return &domain.ValidationError{Reason: "invalid message id"}
		}
		if err := g.store.MarkAsRead(ctx, messageID, s.UserID); err != nil {
			return &domain.PersistenceError{Op: "mark as read", Err: err}
		}
	} else {
		if err := g.store.MarkAllAsRead(ctx, chatID, s.UserID); err != nil {
			return &domain.PersistenceError{Op: "mark all as read", Err: err}
		}
	}

	data, _ := json.Marshal(protocol.Envelope{
		Type:      protocol.EventMessagesRead,
		ChatID:    env.ChatID,
		MessageID: env.MessageID,
		UserID:    s.UserID.String(),
		Timestamp: g.now(),
	})
	g.broadcastRoom(ctx, chatID, data, nil)
	return nil
}

// handleChangeStatus validates the status enum and broadcasts process-wide;
// status is not chat-scoped.
func (g *Gateway) handleChangeStatus(ctx context.Context, s *Session, env *protocol.Envelope) error {
	status := domain.PresenceStatus(env.Status)
	if !status.Valid() {
		return &domain.ValidationError{Reason: "invalid status: " + env.Status}
	}
	if err := g.registry.SetStatus(ctx, s.UserID, status); err != nil {
		g.logger.Warn("failed to set status", zap.Error(err))
	}
	g.broadcastStatus(ctx, nil, s.UserID, status)
	return nil
}

// Disconnect runs the teardown exactly once per connection, also under
// abrupt termination: presence goes offline, every joined room drops the
// user, and the transition is broadcast to the remaining connections.
func (g *Gateway) Disconnect(s *Session) {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if err := g.registry.SetStatus(ctx, s.UserID, domain.StatusOffline); err != nil {
			g.logger.Warn("failed to set offline status", zap.Error(err))
		}
		for _, chatID := range s.Rooms() {
			if err := g.registry.RemoveFromRoom(ctx, chatID, s.UserID); err != nil {
				g.logger.Warn("failed to remove from room", zap.Error(err))
			}
			g.hub.LeaveRoom(chatID, s)
		}
		g.hub.Unregister(s)
		wsActiveConnections.Dec()

		g.broadcastStatus(ctx, s, s.UserID, domain.StatusOffline)
		close(s.send)

		g.logger.Info("session disconnected",
			zap.String("userId", s.UserID.String()),
			zap.String("sessionId", s.ID.String()))
	})
}

func (g *Gateway) broadcastStatus(ctx context.Context, except *Session, userID uuid.UUID, status domain.PresenceStatus) {
	now := g.now()
	env := protocol.Envelope{
		Type:      protocol.EventUserStatus,
		UserID:    userID.String(),
		Status:    string(status),
		Timestamp: now,
	}
	if status == domain.StatusOffline {
		env.LastSeen = &now
	}
	data, _ := json.Marshal(env)
	g.hub.BroadcastAll(data, except)
	if g.bridge != nil {
		g.bridge.PublishGlobal(ctx, data)
	}
}

func (g *Gateway) broadcastRoom(ctx context.Context, chatID uuid.UUID, data []byte, except *Session) {
	g.hub.BroadcastRoom(chatID, data, except)
	if g.bridge != nil {
		g.bridge.PublishRoom(ctx, chatID, data)
	}
}

// sendError converts a handler failure into a scoped error event for the
// originating connection only.
func (g *Gateway) sendError(s *Session, err error, context string) {
	payload := &protocol.ErrorPayload{
		Type:    domain.ErrKindValidation,
		Message: err.Error(),
		Context: context,
	}

	var authErr *domain.AuthenticationError
	var authzErr *domain.AuthorizationError
	var persistErr *domain.PersistenceError
	switch {
	case errors.As(err, &authErr):
		payload.Type = domain.ErrKindAuthentication
	case errors.As(err, &authzErr):
		payload.Type = domain.ErrKindAuthorization
	case errors.As(err, &persistErr):
		payload.Type = domain.ErrKindPersistence
	}

	s.SendEvent(&protocol.Envelope{Type: protocol.EventError, Error: payload})
}
