package storage

import (
	"context"
	"sync"
	"time"

	"github.com/calmora/voice-backend/internal/types"
)

// Gateway is the key-value persistence boundary for user records. No
// transactions, no conditional writes: last writer wins.
type Gateway interface {
	// Get returns (nil, nil) when no record exists for the user.
	Get(ctx context.Context, userID string) (*types.UserRecord, error)
	Put(ctx context.Context, rec *types.UserRecord) error
}

// prepareForWrite enforces the write-side invariants shared by every
// implementation: createdDate is set once and never overwritten, and the
// transient access token never reaches storage.
func prepareForWrite(rec *types.UserRecord, existingCreated time.Time) *types.UserRecord {
	out := rec.Clone()
	out.AccessToken = ""
	if !existingCreated.IsZero() {
		out.CreatedDate = existingCreated
	} else if out.CreatedDate.IsZero() {
		out.CreatedDate = time.Now().UTC()
	}
	return out
}

// MemoryGateway is the in-process store used in tests and local development.
type MemoryGateway struct {
	mu      sync.RWMutex
	records map[string]*types.UserRecord
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{records: make(map[string]*types.UserRecord)}
}

func (m *MemoryGateway) Get(ctx context.Context, userID string) (*types.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (m *MemoryGateway) Put(ctx context.Context, rec *types.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var existingCreated time.Time
	if prev, ok := m.records[rec.UserID]; ok {
		existingCreated = prev.CreatedDate
	}
	m.records[rec.UserID] = prepareForWrite(rec, existingCreated)
	return nil
}
