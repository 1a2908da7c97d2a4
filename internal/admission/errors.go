package admission

import (
	"errors"
	"fmt"

	"smart-street-backend/internal/model"
	"smart-street-backend/internal/store"
)

var (
	// ErrNotFound is returned when the request id does not resolve.
	ErrNotFound = errors.New("request not found")
	// ErrInvalidStateTransition is returned when the request already left PENDING.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrAdmissionConflict is returned when approval would overlap an approved request.
	ErrAdmissionConflict = errors.New("admission conflict")
	// ErrInvalidRequest is returned when the stored request cannot be admitted
	// as written: an empty or inverted window, or unusable dimensions.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPersistence is returned for store failures. The transaction was rolled back.
	ErrPersistence = errors.New("persistence failure")
)

// InvalidTransitionError carries the status the request was found in.
type InvalidTransitionError struct {
	RequestID string
	Current   model.RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("request %s cannot be decided: current status is %s", e.RequestID, e.Current)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// ConflictError carries every approved request that overlaps the candidate.
type ConflictError struct {
	RequestID string
	Conflicts []model.SpaceRequest
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("request %s overlaps %d approved request(s) in space and time", e.RequestID, len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrAdmissionConflict
}

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// InvalidRequestError reports why a stored request cannot be admitted.
type InvalidRequestError struct {
	RequestID string
	Reason    string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("request %s cannot be approved: %s", e.RequestID, e.Reason)
}

func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// checkAdmissible rejects requests whose window or footprint would slip past
// the conflict scan.
func checkAdmissible(req *model.SpaceRequest) error {
	if !req.StartTime.Before(req.EndTime) {
		return &InvalidRequestError{RequestID: req.ID, Reason: "start_time must be before end_time"}
	}
	if _, err := req.Radius(); err != nil {
		return &InvalidRequestError{RequestID: req.ID, Reason: err.Error()}
	}
	return nil
}

// lockError maps a LockRequest failure.
func lockError(requestID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}
	return &PersistenceError{Op: "lock request " + requestID, Err: err}
}

// classify leaves domain errors untouched and wraps anything else as a
// PersistenceError.
func classify(op string, err error) error {
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrAdmissionConflict) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
