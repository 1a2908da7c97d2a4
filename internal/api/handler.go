package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"smart-street-backend/internal/admission"
	"smart-street-backend/internal/model"
	"smart-street-backend/internal/notification"
	"smart-street-backend/internal/parse"
	"smart-street-backend/internal/permit"
	"smart-street-backend/internal/store"
)

// Admission is the operator-facing decision surface.
type Admission interface {
	Approve(ctx context.Context, d admission.Decision) (*admission.ApproveResult, error)
	Reject(ctx context.Context, d admission.Decision) (*admission.RejectResult, error)
	ListPending(ctx context.Context) ([]admission.PendingRequest, error)
	ListAll(ctx context.Context, filter store.RequestFilter) ([]store.RequestSummary, error)
	ListPermits(ctx context.Context) ([]store.PermitSummary, error)
}

// CredentialVerifier checks permit credentials presented on site.
type CredentialVerifier interface {
	Verify(credential string) (*permit.Claims, error)
}

// AuditLog lists recorded operator actions.
type AuditLog interface {
	ListRecent(ctx context.Context, limit int) ([]model.AuditLog, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	admission Admission
	verifier  CredentialVerifier
	audit     AuditLog
	inbox     *notification.Inbox
	webpush   *webpush.Options
}

// NewHandler creates a new API handler. inbox and webpushOptions may be nil.
func NewHandler(a Admission, verifier CredentialVerifier, auditLog AuditLog, inbox *notification.Inbox, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		admission: a,
		verifier:  verifier,
		audit:     auditLog,
		inbox:     inbox,
		webpush:   webpushOptions,
	}
}

// writeError maps domain errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var (
		validation *parse.ValidationError
		transition *admission.InvalidTransitionError
		conflict   *admission.ConflictError
		malformed  *admission.InvalidRequestError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.Is(err, admission.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{
			"error":          "only PENDING requests can be decided",
			"current_status": transition.Current,
		})
	case errors.As(err, &malformed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": malformed.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "cannot approve: spatial/temporal conflict with approved request(s)",
			"conflicts": conflict.Conflicts,
		})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
