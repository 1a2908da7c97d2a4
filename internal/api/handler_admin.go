package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-street-backend/internal/admission"
	"smart-street-backend/internal/mw"
	"smart-street-backend/internal/parse"
	"smart-street-backend/internal/store"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type decisionRequest struct {
	Remarks *string `json:"remarks"`
}

// ListRequests returns the pending queue with conflict previews. With
// ?history=true or ?status=X it returns every matching request instead.
func (h *Handler) ListRequests(c *gin.Context) {
	history, err := parse.Bool("history", c.Query("history"))
	if err != nil {
		writeError(c, err)
		return
	}

	rawStatus, hasStatus := c.GetQuery("status")
	if !history && !hasStatus {
		pending, err := h.admission.ListPending(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, pending)
		return
	}

	var filter store.RequestFilter
	if hasStatus {
		status, err := parse.Status(rawStatus)
		if err != nil {
			writeError(c, err)
			return
		}
		filter.Status = &status
	}

	rows, err := h.admission.ListAll(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ApproveRequest approves a pending request and returns it with its permit.
func (h *Handler) ApproveRequest(c *gin.Context) {
	decision, ok := h.bindDecision(c)
	if !ok {
		return
	}

	result, err := h.admission.Approve(c.Request.Context(), decision)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RejectRequest rejects a pending request.
func (h *Handler) RejectRequest(c *gin.Context) {
	decision, ok := h.bindDecision(c)
	if !ok {
		return
	}

	result, err := h.admission.Reject(c.Request.Context(), decision)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindDecision validates the path id and optional body and attaches the
// reviewer from the session. It writes the error response itself.
func (h *Handler) bindDecision(c *gin.Context) (admission.Decision, bool) {
	id, err := parse.RequestID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return admission.Decision{}, false
	}

	var body decisionRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return admission.Decision{}, false
	}
	remarks, err := parse.Remarks(body.Remarks)
	if err != nil {
		writeError(c, err)
		return admission.Decision{}, false
	}

	principal, ok := mw.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return admission.Decision{}, false
	}

	return admission.Decision{
		RequestID:  id,
		ReviewerID: principal.UserID,
		Remarks:    remarks,
		Origin:     c.ClientIP(),
	}, true
}

// ListPermits returns every issued permit with its request and space.
func (h *Handler) ListPermits(c *gin.Context) {
	rows, err := h.admission.ListPermits(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListAuditLogs returns the most recent operator actions.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit, err := parse.Limit(c.Query("limit"), defaultAuditLimit, maxAuditLimit)
	if err != nil {
		writeError(c, err)
		return
	}

	entries, err := h.audit.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
