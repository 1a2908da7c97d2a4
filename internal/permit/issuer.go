// Package permit issues and verifies the signed credentials attached to
// approved space requests.
package permit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smart-street-backend/internal/model"
	"smart-street-backend/internal/store"
)

// ErrInvalidCredential is returned by Verify for any token that does not carry a
// valid signature or has expired.
var ErrInvalidCredential = errors.New("invalid permit credential")

// Claims is the content of a permit credential.
type Claims struct {
	PermitID  string    `json:"permit_id"`
	RequestID string    `json:"request_id"`
	VendorID  string    `json:"vendor_id"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
	jwt.RegisteredClaims
}

// ActiveAt reports whether t falls inside the permitted window [ValidFrom, ValidTo).
func (c *Claims) ActiveAt(t time.Time) bool {
	return !t.Before(c.ValidFrom) && t.Before(c.ValidTo)
}

// Issuer creates permits and signs their credentials with an HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. ttl is the lifetime of the credential itself,
// independent of the permit's validity window.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// CreatePermit issues the permit for an APPROVED request inside tx. The permit
// id is allocated up front so the credential is signed once with its final
// content. The unique index on request_id rejects a second permit for the
// same request.
func (i *Issuer) CreatePermit(ctx context.Context, tx store.Tx, req *model.SpaceRequest) (*model.Permit, error) {
	if req.Status != model.RequestApproved {
		return nil, fmt.Errorf("cannot issue permit for request %s in status %s", req.ID, req.Status)
	}

	now := i.now().UTC()
	permit := &model.Permit{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		ValidFrom: req.StartTime.UTC(),
		ValidTo:   req.EndTime.UTC(),
		Status:    model.PermitValid,
		IssuedAt:  now,
	}

	credential, err := i.SignCredential(&Claims{
		PermitID:  permit.ID,
		RequestID: req.ID,
		VendorID:  req.VendorID,
		ValidFrom: permit.ValidFrom,
		ValidTo:   permit.ValidTo,
	}, now)
	if err != nil {
		return nil, err
	}
	permit.Credential = credential

	if err := tx.CreatePermit(ctx, permit); err != nil {
		return nil, err
	}
	return permit, nil
}

// SignCredential fills the registered claims of c relative to issuedAt and returns the
// HS256 token. The credential lives for the issuer's ttl, and never ends before
// the permitted window does.
func (i *Issuer) SignCredential(c *Claims, issuedAt time.Time) (string, error) {
	expiresAt := issuedAt.Add(i.ttl)
	if c.ValidTo.After(expiresAt) {
		expiresAt = c.ValidTo
	}
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        c.PermitID,
		Subject:   c.VendorID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign permit credential: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a credential and returns its claims.
func (i *Issuer) Verify(credential string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}
