package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"
)

const commandTimeout = 5 * time.Second

type WSHandler struct {
	manager    *app.Manager
	jwt        *auth.JWTService
	validate   *validator.Validate
	logger     *zap.Logger
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewWSHandler(manager *app.Manager, jwt *auth.JWTService, sendBuffer int, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		manager:    manager,
		jwt:        jwt,
		validate:   validator.New(),
		logger:     logger,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	DisplayName string `json:"displayName" validate:"omitempty,max=64"`
}

type submitPayload struct {
	QuestionIndex *int            `json:"questionIndex" validate:"required,min=0"`
	Answer        json.RawMessage `json:"answer"`
	Declined      bool            `json:"declined"`
}

// ServeWS authenticates the caller, upgrades the request and relays commands between
// the socket and the session's room.
func (h *WSHandler) ServeWS(c *gin.Context) {
	sessionID := c.Query("sessionId")
	token := c.Query("token")
	if sessionID == "" || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and token required"})
		return
	}
	claims, err := h.jwt.Validate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if _, err := h.manager.Session(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := newClient(conn, h.sendBuffer, h.logger)
	go client.writePump()
	// The connection outlives the request's cancellation once hijacked.
	h.readPump(context.WithoutCancel(c.Request.Context()), sessionID, claims, client)
}

func (h *WSHandler) readPump(ctx context.Context, sessionID string, claims *auth.Claims, client *wsClient) {
	logger := h.logger.With(zap.String("session_id", sessionID), zap.String("user_id", claims.UserID))
	defer func() {
		h.manager.Disconnect(sessionID, claims.UserID, client)
		_ = client.Close()
	}()

	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("ws read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.handle(ctx, sessionID, claims, client, inbound); err != nil {
			logger.Debug("command rejected", zap.String("type", inbound.Type), zap.Error(err))
			// Errors go to the originating connection only.
			_ = client.Send(domain.ErrorEnvelope(err))
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, sessionID string, claims *auth.Claims, client *wsClient, msg inboundMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch msg.Type {
	case domain.MsgJoin:
		var p joinPayload
		if err := h.decode(msg.Payload, &p); err != nil {
			return err
		}
		name := p.DisplayName
		if name == "" {
			name = claims.Name
		}
		return h.manager.Join(ctx, sessionID, claims.UserID, name, client)
	case domain.MsgLeave:
		return h.manager.Leave(ctx, sessionID, claims.UserID)
	case domain.MsgStart:
		return h.manager.Start(ctx, sessionID, claims.UserID)
	case domain.MsgSubmitAnswer:
		var p submitPayload
		if err := h.decode(msg.Payload, &p); err != nil {
			return err
		}
		return h.manager.SubmitAnswer(ctx, sessionID, claims.UserID, domain.Submission{
			QuestionIndex: *p.QuestionIndex,
			Answer:        p.Answer,
			Declined:      p.Declined,
		})
	case domain.MsgCancel:
		return h.manager.Cancel(ctx, sessionID, claims.UserID)
	case domain.MsgNextQuestion:
		return h.manager.NextQuestion(ctx, sessionID, claims.UserID)
	default:
		return fmt.Errorf("%w: unsupported message type %q", domain.ErrInvalidPayload, msg.Type)
	}
}

// decode accepts an absent payload as the zero value before validation.
func (h *WSHandler) decode(raw json.RawMessage, dst any) error {
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: malformed payload", domain.ErrInvalidPayload)
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
