package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// memoryStore is a minimal Store for exercising the sweep loop.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*Session)}
}

func (m *memoryStore) Create(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *sess
	m.sessions[sess.Name] = &copied
	return nil
}

func (m *memoryStore) FindByName(ctx context.Context, tenantID, name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[name]; ok && sess.TenantID == tenantID {
		copied := *sess
		return &copied, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "session not found", nil, "00000000-0000-0000-0000-000000000003")
}

func (m *memoryStore) FindByNameAny(ctx context.Context, name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[name]; ok {
		copied := *sess
		return &copied, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "session not found", nil, "00000000-0000-0000-0000-000000000004")
}

func (m *memoryStore) ListByTenant(ctx context.Context, tenantID string) ([]*Session, error) {
	return nil, nil
}

func (m *memoryStore) Update(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *sess
	m.sessions[sess.Name] = &copied
	return nil
}

func (m *memoryStore) ListExpiredAwaitingScan(ctx context.Context, now time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, sess := range m.sessions {
		if sess.QRExpired(now) {
			copied := *sess
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryStore) Disable(ctx context.Context, tenantID, name string) error { return nil }

func TestSweepRevertsExpiredSessions(t *testing.T) {
	store := newMemoryStore()
	past := time.Now().Add(-time.Second)
	future := time.Now().Add(time.Minute)

	expired := NewSession("tenant-1", "expired")
	expired.Status = StatusAwaitingScan
	expired.QRCode = "stale-qr"
	expired.QRExpiresAt = &past
	require.NoError(t, store.Create(context.Background(), expired))

	pending := NewSession("tenant-1", "pending")
	pending.Status = StatusAwaitingScan
	pending.QRCode = "fresh-qr"
	pending.QRExpiresAt = &future
	require.NoError(t, store.Create(context.Background(), pending))

	w := NewWatchdog(store, time.Millisecond, zerolog.Nop())
	w.sweep(context.Background())

	got, err := store.FindByNameAny(context.Background(), "expired")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, got.Status)
	assert.Empty(t, got.QRCode)
	assert.Nil(t, got.QRExpiresAt)

	got, err = store.FindByNameAny(context.Background(), "pending")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingScan, got.Status)
	assert.Equal(t, "fresh-qr", got.QRCode)
}

func TestWatchdogStartStop(t *testing.T) {
	store := newMemoryStore()
	past := time.Now().Add(-time.Second)

	expired := NewSession("tenant-1", "expired")
	expired.Status = StatusAwaitingScan
	expired.QRExpiresAt = &past
	require.NoError(t, store.Create(context.Background(), expired))

	w := NewWatchdog(store, 5*time.Millisecond, zerolog.Nop())
	w.Start(context.Background())

	assert.Eventually(t, func() bool {
		got, err := store.FindByNameAny(context.Background(), "expired")
		return err == nil && got.Status == StatusStopped
	}, time.Second, 5*time.Millisecond)

	w.Stop()
	w.Stop() // second call is a no-op
}
