// internal/handlers/realtime.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/devmarket/devmarket-backend/internal/realtime"
	"github.com/devmarket/devmarket-backend/internal/services"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 54 * time.Second
	wsMaxMessageSize = 4096
	wsSendBuffer     = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is token-authenticated; cross-origin browser clients are
	// expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RealtimeHandler bridges websocket connections onto the in-process hub. Each
// connection is subscribed to its user's channel for the whole session and may
// join request rooms it is a party to for typing signals.
type RealtimeHandler struct {
	hub            *realtime.Hub
	messageService *services.MessageService
}

// wsCommand is the client-to-server frame.
type wsCommand struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}

func NewRealtimeHandler(hub *realtime.Hub, messageService *services.MessageService) *RealtimeHandler {
	return &RealtimeHandler{
		hub:            hub,
		messageService: messageService,
	}
}

// GET /ws?token=...
//
// Browsers cannot set an Authorization header on a websocket handshake, so the
// token rides in the query string.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	claims, err := utils.ValidateJWT(c.Query("token"))
	if err != nil {
		utils.UnauthorizedResponse(c, "Invalid or expired token")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		utils.UnauthorizedResponse(c, "Invalid or expired token")
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	session := &wsSession{
		handler: h,
		conn:    conn,
		userID:  userID,
		send:    make(chan realtime.Event, wsSendBuffer),
		rooms:   make(map[uuid.UUID]func()),
	}

	cancelUser := h.hub.Subscribe(realtime.UserChannel(userID), session.send)
	defer func() {
		cancelUser()
		session.leaveAllRooms()
	}()

	go session.writePump()
	session.readPump()
}

// wsSession is one live connection. readPump owns conn reads and the rooms
// map; writePump owns conn writes.
type wsSession struct {
	handler *RealtimeHandler
	conn    *websocket.Conn
	userID  uuid.UUID
	send    chan realtime.Event
	rooms   map[uuid.UUID]func()
}

func (s *wsSession) readPump() {
	defer s.conn.Close()

	s.conn.SetReadLimit(wsMaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var cmd wsCommand
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Debug("Websocket closed unexpectedly")
			}
			return
		}
		s.dispatch(cmd)
	}
}

func (s *wsSession) dispatch(cmd wsCommand) {
	switch cmd.Type {
	case "join_request":
		if requestID, err := uuid.Parse(cmd.RequestID); err == nil {
			s.joinRoom(requestID)
		}
	case "leave_request":
		if requestID, err := uuid.Parse(cmd.RequestID); err == nil {
			s.leaveRoom(requestID)
		}
	case "typing_started", "typing_stopped":
		requestID, err := uuid.Parse(cmd.RequestID)
		if err != nil {
			return
		}
		started := cmd.Type == "typing_started"
		if err := s.handler.messageService.PublishTyping(requestID, s.userID, started); err != nil {
			logrus.WithError(err).Debug("Rejected typing signal")
		}
	}
}

// joinRoom subscribes the session to a request room after verifying the user
// is a party to the request.
func (s *wsSession) joinRoom(requestID uuid.UUID) {
	if _, joined := s.rooms[requestID]; joined {
		return
	}
	if !s.handler.messageService.CanAccessRequest(requestID, s.userID) {
		return
	}
	s.rooms[requestID] = s.handler.hub.Subscribe(realtime.RequestChannel(requestID), s.send)
}

func (s *wsSession) leaveRoom(requestID uuid.UUID) {
	if cancel, joined := s.rooms[requestID]; joined {
		cancel()
		delete(s.rooms, requestID)
	}
}

func (s *wsSession) leaveAllRooms() {
	for requestID, cancel := range s.rooms {
		cancel()
		delete(s.rooms, requestID)
	}
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case event, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Typing signals from the sender's own session are not echoed back.
			if payload, isMap := event.Payload.(map[string]string); isMap &&
				payload["user_id"] == s.userID.String() {
				continue
			}
			if err := s.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
