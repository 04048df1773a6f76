package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
)

// RouterConfig carries what the HTTP surface needs.
type RouterConfig struct {
	Manager    *app.Manager
	Results    app.ResultsReader // optional
	Quizzes    QuizCache         // optional
	JWT        *auth.JWTService
	Logger     *zap.Logger
	SendBuffer int
}

// NewRouter builds the gin engine with health, REST and websocket routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(cfg.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	ws := NewWSHandler(cfg.Manager, cfg.JWT, cfg.SendBuffer, cfg.Logger)
	r.GET("/ws", ws.ServeWS)

	sessions := NewSessionHandler(cfg.Manager, cfg.Results)
	api := r.Group("/api", JWT(cfg.JWT))
	{
		api.GET("/sessions/current", sessions.Current)
		api.GET("/sessions/:id", sessions.Get)
		if cfg.Results != nil {
			api.GET("/sessions/:id/results", sessions.Results)
		}

		admin := api.Group("", RequireRole(auth.RoleAdmin))
		admin.POST("/sessions", sessions.Create)
		admin.GET("/sessions", sessions.List)
		admin.DELETE("/sessions/:id", sessions.Delete)
		if cfg.Quizzes != nil {
			admin.DELETE("/quizzes/:id/cache", NewQuizHandler(cfg.Quizzes).InvalidateCache)
		}
	}
	return r
}
