// Package admission decides pending space requests: it serializes approvals
// and rejections through the store's transactions, re-validates conflicts
// under lock, and issues the permit of an approved request.
package admission

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"smart-street-backend/internal/audit"
	"smart-street-backend/internal/conflict"
	"smart-street-backend/internal/metrics"
	"smart-street-backend/internal/model"
	"smart-street-backend/internal/notification"
	"smart-street-backend/internal/store"
)

const (
	actionApprove = "approve"
	actionReject  = "reject"

	sideEffectTimeout = 10 * time.Second
	retryBackoff      = 20 * time.Millisecond
)

// Auditor records operator actions.
type Auditor interface {
	RecordAction(ctx context.Context, actorID, action, entityType, entityID, origin string) error
}

// Notifier delivers an event to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, kind string, payload any) error
}

// PermitIssuer creates the permit of an approved request inside the decision transaction.
type PermitIssuer interface {
	CreatePermit(ctx context.Context, tx store.Tx, req *model.SpaceRequest) (*model.Permit, error)
}

// Decision is an operator's verdict on one request.
type Decision struct {
	RequestID  string
	ReviewerID string
	Remarks    *string
	// Origin is the network address of the operator, recorded in the audit trail.
	Origin string
}

// ApproveResult is the outcome of a successful approval.
type ApproveResult struct {
	Request *model.SpaceRequest `json:"request"`
	Permit  *model.Permit       `json:"permit"`
}

// RejectResult is the outcome of a successful rejection.
type RejectResult struct {
	Request *model.SpaceRequest `json:"request"`
}

// PendingRequest is a pending request with the approved requests it would
// currently collide with. The preview is not authoritative.
type PendingRequest struct {
	store.RequestSummary
	Conflicts []model.SpaceRequest `json:"conflicts"`
}

// Options tunes a Controller.
type Options struct {
	// MaxAttempts bounds how many times a decision transaction is run when the
	// store reports a serialization failure. Values below 1 mean 1.
	MaxAttempts int
	Metrics     *metrics.Metrics
}

// Controller is the only writer of request status and permits.
type Controller struct {
	store       store.Store
	detector    *conflict.Detector
	issuer      PermitIssuer
	auditor     Auditor
	notifier    Notifier
	metrics     *metrics.Metrics
	maxAttempts int
	now         func() time.Time

	pending sync.WaitGroup
}

// NewController creates a Controller. auditor and notifier may be nil.
func NewController(s store.Store, detector *conflict.Detector, issuer PermitIssuer, auditor Auditor, notifier Notifier, opts Options) *Controller {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Controller{
		store:       s,
		detector:    detector,
		issuer:      issuer,
		auditor:     auditor,
		notifier:    notifier,
		metrics:     opts.Metrics,
		maxAttempts: opts.MaxAttempts,
		now:         time.Now,
	}
}

// Approve moves a PENDING request to APPROVED and issues its permit, all in
// one transaction. The conflict scan runs inside that transaction after the
// request row is locked.
func (c *Controller) Approve(ctx context.Context, d Decision) (*ApproveResult, error) {
	started := time.Now()
	defer func() {
		c.metrics.DecisionDuration.WithLabelValues(actionApprove).Observe(time.Since(started).Seconds())
	}()

	var result *ApproveResult
	err := c.runTx(ctx, actionApprove, func(tx store.Tx) error {
		result = nil

		req, err := tx.LockRequest(ctx, d.RequestID)
		if err != nil {
			return lockError(d.RequestID, err)
		}
		if req.Status != model.RequestPending {
			return &InvalidTransitionError{RequestID: req.ID, Current: req.Status}
		}
		if err := checkAdmissible(req); err != nil {
			return err
		}

		conflicts, err := c.detector.FindApprovedConflicts(ctx, tx, req, req.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{RequestID: req.ID, Conflicts: conflicts}
		}

		c.applyDecision(req, model.RequestApproved, d)
		if err := tx.SaveDecision(ctx, req); err != nil {
			return err
		}

		permit, err := c.issuer.CreatePermit(ctx, tx, req)
		if err != nil {
			return err
		}
		result = &ApproveResult{Request: req, Permit: permit}
		return nil
	})
	if err != nil {
		c.metrics.Decisions.WithLabelValues(actionApprove, outcome(err)).Inc()
		return nil, err
	}

	c.metrics.Decisions.WithLabelValues(actionApprove, metrics.OutcomeApproved).Inc()
	log.Printf("Request %s approved by %s, permit %s issued", result.Request.ID, d.ReviewerID, result.Permit.ID)
	c.afterDecision(ctx, audit.ActionApproveRequest, d, result.Request, result.Permit)
	return result, nil
}

// Reject moves a PENDING request to REJECTED.
func (c *Controller) Reject(ctx context.Context, d Decision) (*RejectResult, error) {
	started := time.Now()
	defer func() {
		c.metrics.DecisionDuration.WithLabelValues(actionReject).Observe(time.Since(started).Seconds())
	}()

	var result *RejectResult
	err := c.runTx(ctx, actionReject, func(tx store.Tx) error {
		result = nil

		req, err := tx.LockRequest(ctx, d.RequestID)
		if err != nil {
			return lockError(d.RequestID, err)
		}
		if req.Status != model.RequestPending {
			return &InvalidTransitionError{RequestID: req.ID, Current: req.Status}
		}

		c.applyDecision(req, model.RequestRejected, d)
		if err := tx.SaveDecision(ctx, req); err != nil {
			return err
		}
		result = &RejectResult{Request: req}
		return nil
	})
	if err != nil {
		c.metrics.Decisions.WithLabelValues(actionReject, outcome(err)).Inc()
		return nil, err
	}

	c.metrics.Decisions.WithLabelValues(actionReject, metrics.OutcomeRejected).Inc()
	log.Printf("Request %s rejected by %s", result.Request.ID, d.ReviewerID)
	c.afterDecision(ctx, audit.ActionRejectRequest, d, result.Request, nil)
	return result, nil
}

// ListPending returns the pending requests, oldest first, each with a
// point-in-time conflict preview.
func (c *Controller) ListPending(ctx context.Context) ([]PendingRequest, error) {
	rows, err := c.store.ListPendingRequests(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list pending requests", Err: err}
	}

	out := make([]PendingRequest, 0, len(rows))
	for _, row := range rows {
		conflicts, err := c.detector.FindApprovedConflicts(ctx, c.store, &row.SpaceRequest, row.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// One unreadable request must not hide the rest of the queue.
			log.Printf("Error previewing conflicts for request %s: %v", row.ID, err)
		}
		if conflicts == nil {
			conflicts = []model.SpaceRequest{}
		}
		out = append(out, PendingRequest{RequestSummary: row, Conflicts: conflicts})
	}
	return out, nil
}

// ListAll returns requests of every status, newest first, optionally narrowed by filter.
func (c *Controller) ListAll(ctx context.Context, filter store.RequestFilter) ([]store.RequestSummary, error) {
	rows, err := c.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "list requests", Err: err}
	}
	return rows, nil
}

// ListPermits returns every permit with its request and space, newest first.
func (c *Controller) ListPermits(ctx context.Context) ([]store.PermitSummary, error) {
	rows, err := c.store.ListPermits(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list permits", Err: err}
	}
	return rows, nil
}

// Drain waits for the post-commit side effects still in flight.
func (c *Controller) Drain() {
	c.pending.Wait()
}

func (c *Controller) applyDecision(req *model.SpaceRequest, status model.RequestStatus, d Decision) {
	reviewer := d.ReviewerID
	reviewedAt := c.now().UTC()
	req.Status = status
	req.ReviewedBy = &reviewer
	req.ReviewedAt = &reviewedAt
	req.Remarks = d.Remarks
}

// runTx runs fn in a transaction, starting over when the store reports a
// transient serialization failure. Every attempt re-reads all state.
func (c *Controller) runTx(ctx context.Context, action string, fn func(tx store.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := c.store.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !store.IsRetryable(err) || attempt >= c.maxAttempts {
			return classify(action, err)
		}

		c.metrics.TxRetries.Inc()
		log.Printf("Retrying %s transaction (attempt %d/%d): %v", action, attempt+1, c.maxAttempts, err)
		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
			return classify(action, ctx.Err())
		}
	}
}

// afterDecision writes the audit entry and notifies the vendor. It runs
// detached from the caller; failures are logged and counted only.
func (c *Controller) afterDecision(ctx context.Context, action string, d Decision, req *model.SpaceRequest, permit *model.Permit) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
		defer cancel()

		if c.auditor != nil {
			if err := c.auditor.RecordAction(ctx, d.ReviewerID, action, audit.EntitySpaceRequests, req.ID, d.Origin); err != nil {
				log.Printf("Error writing audit entry for request %s: %v", req.ID, err)
				c.metrics.SideEffectErrors.WithLabelValues("audit").Inc()
			}
		}

		if c.notifier == nil {
			return
		}
		userID, err := c.store.VendorUserID(ctx, req.VendorID)
		if err != nil {
			log.Printf("Error resolving user of vendor %s: %v", req.VendorID, err)
			c.metrics.SideEffectErrors.WithLabelValues("notify").Inc()
			return
		}

		for _, n := range notificationsFor(req, permit) {
			if err := c.notifier.Notify(ctx, userID, n.kind, n.payload); err != nil {
				log.Printf("Error sending %s notification for request %s: %v", n.kind, req.ID, err)
				c.metrics.SideEffectErrors.WithLabelValues("notify").Inc()
			}
		}
	}()
}

type outgoing struct {
	kind    string
	payload map[string]any
}

func notificationsFor(req *model.SpaceRequest, permit *model.Permit) []outgoing {
	if req.Status == model.RequestRejected {
		return []outgoing{{
			kind:    notification.KindRequestRejected,
			payload: map[string]any{"request_id": req.ID, "remarks": req.Remarks},
		}}
	}
	out := []outgoing{{
		kind:    notification.KindRequestApproved,
		payload: map[string]any{"request_id": req.ID},
	}}
	if permit != nil {
		out = append(out, outgoing{
			kind:    notification.KindPermitIssued,
			payload: map[string]any{"request_id": req.ID, "permit_id": permit.ID},
		})
	}
	return out
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAdmissionConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrInvalidStateTransition):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInvalidRequest):
		return metrics.OutcomeInvalidRequest
	default:
		return metrics.OutcomeError
	}
}
