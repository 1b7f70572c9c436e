package auth

import (
	"context"
	"log/slog"
)

// MemberStore is the slice of the member repository the access check needs.
type MemberStore interface {
	HasActiveMembership(ctx context.Context, orgID, userID string) (bool, error)
}

// AccessChecker answers whether a user may act within an organization.
type AccessChecker struct {
	store MemberStore
}

// NewAccessChecker creates a checker backed by the given store.
func NewAccessChecker(store MemberStore) *AccessChecker {
	return &AccessChecker{store: store}
}

// HasAccess reports whether userID holds an active membership in orgID. A
// store error fails closed: it is logged and reported as "no access", never
// propagated.
func (a *AccessChecker) HasAccess(ctx context.Context, userID, orgID string) bool {
	ok, err := a.store.HasActiveMembership(ctx, orgID, userID)
	if err != nil {
		slog.Error("membership check failed",
			"user_id", userID,
			"organization_id", orgID,
			"error", err)
		return false
	}
	return ok
}
