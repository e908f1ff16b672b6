package handler

import (
	"Chatline/internal/auth"
	"Chatline/internal/repo"
	"Chatline/internal/service"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type MessageHandler interface {
	SendMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	GetConversation(c *gin.Context)
	MarkAsRead(c *gin.Context)
	GetUnreadCount(c *gin.Context)
}

type messageHandler struct {
	service service.MessageService
}

func NewMessageHandler(service service.MessageService) MessageHandler {
	return &messageHandler{
		service: service,
	}
}

func (h *messageHandler) SendMessage(c *gin.Context) {
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	msg, err := h.service.Send(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		serverError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": msg,
	})
}

func (h *messageHandler) DeleteMessage(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), auth.UserID(c), c.Param("messageId")); err != nil {
		serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message deleted",
	})
}

// GetConversation returns a page of history with the peer in :userId, oldest first.
// Query: page (1-based, default 1), limit (default 50, at most 100), before (RFC3339, optional).
func (h *messageHandler) GetConversation(c *gin.Context) {
	peerID := c.Param("userId")
	pageNumber, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || pageNumber < 1 {
		badRequest(c, "Invalid page number")
		return
	}

	var limit int64
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 1 {
			badRequest(c, "Invalid limit")
			return
		}
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "Invalid before timestamp")
			return
		}
		before = &t
	}

	result, err := h.service.GetConversation(c.Request.Context(), auth.UserID(c), peerID, repo.ConversationQuery{
		Page:   pageNumber,
		Limit:  limit,
		Before: before,
	})
	if err != nil {
		serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"messages":   result.Messages,
		"page":       result.Page,
		"limit":      result.Limit,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}

func (h *messageHandler) MarkAsRead(c *gin.Context) {
	updated, err := h.service.MarkRead(c.Request.Context(), auth.UserID(c), c.Param("userId"))
	if err != nil {
		serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Messages marked as read",
		"updated": updated,
	})
}

func (h *messageHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), auth.UserID(c))
	if err != nil {
		serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   count,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": message,
	})
}

func serverError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Server error"

	switch {
	case errors.Is(err, repo.ErrInvalidUserID):
		status, message = http.StatusBadRequest, "Invalid user id"
	case errors.Is(err, repo.ErrInvalidMessageID):
		status, message = http.StatusBadRequest, "Invalid message id"
	case errors.Is(err, service.ErrReceiverNotFound):
		status, message = http.StatusNotFound, "Receiver not found"
	case errors.Is(err, repo.ErrMessageNotFound):
		status, message = http.StatusNotFound, "Message not found"
	case errors.Is(err, service.ErrNotMessageOwner):
		status, message = http.StatusForbidden, "Not authorized to delete this message"
	case errors.Is(err, repo.ErrOperationTimeout):
		status, message = http.StatusGatewayTimeout, "Request timed out"
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}
