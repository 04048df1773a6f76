package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// QuizCache drops a cached quiz so the next session reloads it.
type QuizCache interface {
	Invalidate(ctx context.Context, quizID string) error
}

type QuizHandler struct {
	cache QuizCache
}

func NewQuizHandler(cache QuizCache) *QuizHandler {
	return &QuizHandler{cache: cache}
}

func (h *QuizHandler) InvalidateCache(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
