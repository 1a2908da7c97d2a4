package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smart-street-backend/internal/model"
	"smart-street-backend/internal/mw"
	"smart-street-backend/internal/notification"
	"smart-street-backend/internal/parse"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// PutSubscription registers or replaces a push subscription of the caller.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	principal, ok := mw.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		UserID:   principal.UserID,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.inbox.SaveSubscription(c.Request.Context(), &sub); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// GetSubscription reports whether an endpoint is registered for the caller.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint, err := parse.Required("endpoint", c.Query("endpoint"))
	if err != nil {
		writeError(c, err)
		return
	}
	principal, ok := mw.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	sub, err := h.inbox.GetSubscription(c.Request.Context(), principal.UserID, endpoint)
	if errors.Is(err, notification.ErrSubscriptionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "created_at": sub.CreatedAt})
}

// DeleteSubscription removes a push subscription of the caller.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	principal, ok := mw.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	err := h.inbox.DeleteSubscription(c.Request.Context(), principal.UserID, req.Endpoint)
	if errors.Is(err, notification.ErrSubscriptionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListNotifications returns the caller's inbox, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	limit, err := parse.Limit(c.Query("limit"), defaultInboxLimit, maxInboxLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	principal, ok := mw.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	rows, err := h.inbox.List(c.Request.Context(), principal.UserID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// MarkNotificationRead flags one notification of the caller as read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	principal, ok := mw.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	err = h.inbox.MarkRead(c.Request.Context(), principal.UserID, id)
	if errors.Is(err, notification.ErrNotificationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
