package session

import (
	"context"
	"time"
)

// Store defines the persistence interface for sessions.
// Session rows are mutated only through the lifecycle Service.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, sess *Session) error

	// FindByName retrieves a session by its tenant-scoped name.
	FindByName(ctx context.Context, tenantID, name string) (*Session, error)

	// FindByNameAny retrieves a session by name across tenants. Used by the
	// gateway intake path, which only knows the session name.
	FindByNameAny(ctx context.Context, name string) (*Session, error)

	// ListByTenant retrieves all enabled sessions for a tenant.
	ListByTenant(ctx context.Context, tenantID string) ([]*Session, error)

	// Update persists the mutable session fields.
	Update(ctx context.Context, sess *Session) error

	// ListExpiredAwaitingScan returns sessions stuck in AWAITING_SCAN whose
	// QR deadline has passed.
	ListExpiredAwaitingScan(ctx context.Context, now time.Time) ([]*Session, error)

	// Disable soft-disables a session. Rows are never hard-deleted while
	// messages reference them.
	Disable(ctx context.Context, tenantID, name string) error
}
