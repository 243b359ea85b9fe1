package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

func (s *Server) handleListNotifications(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultNotificationLimit)))
	if err != nil || limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	unreadOnly := c.Query("unread") == "true"

	list, err := s.inbox.List(c.Request.Context(), identityFrom(c).UserID, unreadOnly, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "count": len(list)})
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	count, err := s.inbox.UnreadCount(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	ok, err := s.inbox.MarkRead(c.Request.Context(), identityFrom(c).UserID, uint(id))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	updated, err := s.inbox.MarkAllRead(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": updated})
}

func (s *Server) handleSubscribe(c *gin.Context) {
	id := identityFrom(c)
	if err := s.live.Serve(c.Writer, c.Request, id.UserID); err != nil {
		s.logger.WithError(err).WithField("user_id", id.UserID).Warn("websocket upgrade failed")
	}
}
