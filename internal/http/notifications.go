package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stackit/internal/domain"
)

type NotificationResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Read      bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) listNotifications(c *gin.Context) {
	notifications, err := h.svc.Notifications.List(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]NotificationResponse, len(notifications))
	for i := range notifications {
		resp[i] = notificationToResponse(notifications[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.svc.Notifications.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *Handler) markAllRead(c *gin.Context) {
	changed, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "all notifications marked as read", "updated": changed})
}

func notificationToResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
}
