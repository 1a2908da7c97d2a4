package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smart-street-backend/internal/model"
)

// Store defines the persistence operations used by the admission core and the
// operator-facing API. Reads outside WithTx are point-in-time snapshots.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetRequest(ctx context.Context, id string) (*model.SpaceRequest, error)
	ListPendingRequests(ctx context.Context) ([]RequestSummary, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]RequestSummary, error)
	ListApproved(ctx context.Context, q ApprovedQuery) ([]model.SpaceRequest, error)
	ListPermits(ctx context.Context) ([]PermitSummary, error)
	GetPermit(ctx context.Context, id string) (*model.Permit, error)
	VendorUserID(ctx context.Context, vendorID string) (string, error)
	ExpirePermits(ctx context.Context, now time.Time) (int64, error)

	DB() *gorm.DB
}

// Tx is the write surface of the store, only reachable inside WithTx.
type Tx interface {
	LockRequest(ctx context.Context, id string) (*model.SpaceRequest, error)
	ListApproved(ctx context.Context, q ApprovedQuery) ([]model.SpaceRequest, error)
	SaveDecision(ctx context.Context, req *model.SpaceRequest) error
	CreatePermit(ctx context.Context, p *model.Permit) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for collaborators sharing the connection pool.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// WithTx runs fn inside a single transaction. Any error returned by fn, a panic,
// or a cancelled context rolls the transaction back. On Postgres the transaction
// runs at SERIALIZABLE isolation so that two admissions whose conflict scans
// miss each other cannot both commit; the loser fails with SQLSTATE 40001.
func (s *gormStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}, opts...)
}

func (s *gormStore) GetRequest(ctx context.Context, id string) (*model.SpaceRequest, error) {
	var req model.SpaceRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (s *gormStore) ListPendingRequests(ctx context.Context) ([]RequestSummary, error) {
	var rows []RequestSummary
	err := s.summaryQuery(ctx).
		Where("sr.status = ?", model.RequestPending).
		Order("sr.submitted_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return rows, nil
}

func (s *gormStore) ListRequests(ctx context.Context, filter RequestFilter) ([]RequestSummary, error) {
	q := s.summaryQuery(ctx)
	if filter.Status != nil {
		q = q.Where("sr.status = ?", *filter.Status)
	}

	var rows []RequestSummary
	if err := q.Order("sr.submitted_at DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return rows, nil
}

func (s *gormStore) summaryQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("space_requests AS sr").
		Select("sr.*, s.name AS space_name, s.address AS address, v.business_name AS business_name").
		Joins("LEFT JOIN spaces s ON s.id = sr.space_id").
		Joins("LEFT JOIN vendors v ON v.id = sr.vendor_id")
}

func (s *gormStore) ListApproved(ctx context.Context, q ApprovedQuery) ([]model.SpaceRequest, error) {
	return listApproved(s.db.WithContext(ctx), q)
}

func (s *gormStore) ListPermits(ctx context.Context) ([]PermitSummary, error) {
	var rows []PermitSummary
	err := s.db.WithContext(ctx).
		Table("permits AS p").
		Select("p.id AS permit_id, p.request_id, p.qr_payload, p.status AS permit_status, " +
			"p.valid_from, p.valid_to, p.issued_at, sr.vendor_id, sr.space_id, sr.lat, sr.lng, " +
			"s.name AS space_name, s.address AS address").
		Joins("JOIN space_requests sr ON sr.id = p.request_id").
		Joins("LEFT JOIN spaces s ON s.id = sr.space_id").
		Order("p.issued_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list permits: %w", err)
	}
	return rows, nil
}

func (s *gormStore) GetPermit(ctx context.Context, id string) (*model.Permit, error) {
	var permit model.Permit
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&permit).Error; err != nil {
		return nil, notFound(err)
	}
	return &permit, nil
}

func (s *gormStore) VendorUserID(ctx context.Context, vendorID string) (string, error) {
	var vendor model.Vendor
	if err := s.db.WithContext(ctx).Select("user_id").Where("id = ?", vendorID).Take(&vendor).Error; err != nil {
		return "", notFound(err)
	}
	return vendor.UserID, nil
}

// ExpirePermits marks every VALID permit whose window ended at or before now as EXPIRED.
func (s *gormStore) ExpirePermits(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Permit{}).
		Where("status = ? AND valid_to <= ?", model.PermitValid, now.UTC()).
		Update("status", model.PermitExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire permits: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// gormTx implements Tx on top of an open GORM transaction.
type gormTx struct {
	db *gorm.DB
}

// LockRequest reads the request row with SELECT ... FOR UPDATE. sqlite has no
// row locks; there the transaction already holds the database write lock.
func (t *gormTx) LockRequest(ctx context.Context, id string) (*model.SpaceRequest, error) {
	q := t.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var req model.SpaceRequest
	if err := q.Where("id = ?", id).Take(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (t *gormTx) ListApproved(ctx context.Context, q ApprovedQuery) ([]model.SpaceRequest, error) {
	return listApproved(t.db.WithContext(ctx), q)
}

// SaveDecision persists the review fields of req. The status guard makes the
// update a no-op if the row already left PENDING.
func (t *gormTx) SaveDecision(ctx context.Context, req *model.SpaceRequest) error {
	res := t.db.WithContext(ctx).
		Model(&model.SpaceRequest{}).
		Where("id = ? AND status = ?", req.ID, model.RequestPending).
		Updates(map[string]any{
			"status":      req.Status,
			"reviewed_by": req.ReviewedBy,
			"reviewed_at": req.ReviewedAt,
			"remarks":     req.Remarks,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to save decision for request %s: %w", req.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("failed to save decision for request %s: %d rows updated", req.ID, res.RowsAffected)
	}
	return nil
}

func (t *gormTx) CreatePermit(ctx context.Context, p *model.Permit) error {
	if err := t.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create permit for request %s: %w", p.RequestID, err)
	}
	return nil
}

func listApproved(db *gorm.DB, q ApprovedQuery) ([]model.SpaceRequest, error) {
	query := db.Model(&model.SpaceRequest{}).
		Where("status = ?", model.RequestApproved).
		Where("start_time < ? AND end_time > ?", q.End.UTC(), q.Start.UTC())
	if q.ExcludeID != "" {
		query = query.Where("id <> ?", q.ExcludeID)
	}
	if q.ScopeToSpace && q.SpaceID != nil {
		query = query.Where("(space_id = ? OR space_id IS NULL)", *q.SpaceID)
	}

	var rows []model.SpaceRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list approved requests: %w", err)
	}
	return rows, nil
}
