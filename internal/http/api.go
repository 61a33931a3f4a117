package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stackit/internal/auth"
	"stackit/internal/domain"
	"stackit/internal/service"
)

// Services groups the domain services the handler exposes.
type Services struct {
	Users         service.UserService
	Questions     service.QuestionService
	Answers       service.AnswerService
	Votes         service.VoteService
	Notifications service.NotificationService
	// Uploads is optional; the upload routes are only registered when set.
	Uploads service.UploadService
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	svc            Services
	tokens         *auth.TokenService
	log            logrus.FieldLogger
	maxUploadBytes int64
}

func NewHandler(svc Services, tokens *auth.TokenService, log logrus.FieldLogger, maxUploadBytes int64) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		svc:            svc,
		tokens:         tokens,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(h.requestLogger())

	api := router.Group("/api")
	api.Use(h.authenticate())
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.GET("/me", h.requireUser(), h.me)

		api.GET("/questions", h.listQuestions)
		api.POST("/questions", h.requireUser(), h.createQuestion)
		api.GET("/questions/:id", h.getQuestion)

		api.POST("/answers", h.requireUser(), h.createAnswer)
		api.POST("/answers/:id/votes", h.requireUser(), h.castVote)
		api.GET("/answers/:id/votes", h.voteTally)
		api.POST("/answers/:id/accept", h.acceptAnswer)

		api.GET("/notifications", h.requireUser(), h.listNotifications)
		api.GET("/notifications/unread-count", h.requireUser(), h.unreadCount)
		api.POST("/notifications/mark-read", h.requireUser(), h.markAllRead)

		api.GET("/tags", h.listTags)
		api.POST("/tags", h.requireUser(), h.createTag)

		if h.svc.Uploads != nil {
			api.POST("/uploads", h.requireUser(), h.uploadImage)
			api.GET("/uploads", h.requireUser(), h.listUploads)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}

	if errors.Is(err, auth.ErrInvalidToken) {
		h.log.WithError(err).WithField("path", c.FullPath()).Debug("rejected bearer token")
		c.AbortWithStatusJSON(status, gin.H{"error": "invalid or expired token"})
		return
	}
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
