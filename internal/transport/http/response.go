package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"live-quiz-service/internal/domain"
)

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindSessionNotFound, domain.KindQuizNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindInvalidPayload:
		return http.StatusBadRequest
	case domain.KindInvalidState, domain.KindSessionClosed, domain.KindNotParticipant,
		domain.KindAlreadyAnswered, domain.KindWrongQuestion:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	c.JSON(statusFor(kind), domain.ErrorPayload{Kind: kind, Message: err.Error()})
}
