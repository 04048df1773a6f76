package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"live-quiz-service/internal/app"
)

// SessionHandler exposes session administration over REST.
type SessionHandler struct {
	manager *app.Manager
	results app.ResultsReader
}

func NewSessionHandler(manager *app.Manager, results app.ResultsReader) *SessionHandler {
	return &SessionHandler{manager: manager, results: results}
}

type createSessionRequest struct {
	QuizID string `json:"quizId" binding:"required"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := claimsFrom(c)
	info, err := h.manager.CreateSession(c.Request.Context(), req.QuizID, claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *SessionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Sessions(c.Request.Context()))
}

func (h *SessionHandler) Current(c *gin.Context) {
	info, err := h.manager.ActiveSession(c.Request.Context(), c.Query("quizId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *SessionHandler) Get(c *gin.Context) {
	state, err := h.manager.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	claims, _ := claimsFrom(c)
	if err := h.manager.Teardown(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Results serves the stored final standings of a finished session.
func (h *SessionHandler) Results(c *gin.Context) {
	sessionID := c.Param("id")
	scores, err := h.results.Scores(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "scores": scores})
}
