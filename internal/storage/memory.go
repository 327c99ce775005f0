package storage

import (
	"context"
	"sync"
	"time"

	"github.com/org/skillgate/pkg/models"
)

// MemoryBackend is an in-process Backend used for dev mode (empty db_url)
// and tests. Data does not survive a restart.
type MemoryBackend struct {
	mu          sync.RWMutex
	tokens      map[string]*models.AccessTokenMetadata
	revocations map[string]*models.RevocationRecord
	audit       []*models.AuditEntry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tokens:      map[string]*models.AccessTokenMetadata{},
		revocations: map[string]*models.RevocationRecord{},
	}
}

func (m *MemoryBackend) WriteTokenMetadata(_ context.Context, meta *models.AccessTokenMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *meta
	m.tokens[meta.JTI] = &cp
	return nil
}

func (m *MemoryBackend) GetTokenMetadata(_ context.Context, jti string) (*models.AccessTokenMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[jti]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	if r, ok := m.revocations[jti]; ok {
		at := r.RevokedAt
		cp.RevokedAt = &at
	}
	return &cp, nil
}

func (m *MemoryBackend) ListTokenMetadata(_ context.Context) ([]*models.AccessTokenMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metas := make([]*models.AccessTokenMetadata, 0, len(m.tokens))
	for jti, t := range m.tokens {
		cp := *t
		if r, ok := m.revocations[jti]; ok {
			at := r.RevokedAt
			cp.RevokedAt = &at
		}
		metas = append(metas, &cp)
	}
	return metas, nil
}

func (m *MemoryBackend) WriteRevocation(_ context.Context, rec *models.RevocationRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revocations[rec.JTI]; ok {
		return false, nil
	}
	cp := *rec
	m.revocations[rec.JTI] = &cp
	return true, nil
}

func (m *MemoryBackend) GetRevocation(_ context.Context, jti string) (*models.RevocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.revocations[jti]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryBackend) AppendAuditEntry(_ context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.audit = append(m.audit, &cp)
	return nil
}

func (m *MemoryBackend) LastAuditEntry(_ context.Context) (*models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.audit) == 0 {
		return nil, ErrNotFound
	}
	cp := *m.audit[len(m.audit)-1]
	return &cp, nil
}

func (m *MemoryBackend) ReadAuditRange(_ context.Context, fromSeq, toSeq int64) ([]*models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*models.AuditEntry
	for _, e := range m.audit {
		if e.Sequence >= fromSeq && e.Sequence <= toSeq {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

func (m *MemoryBackend) QueryAuditLog(_ context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*models.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Since != nil && e.Timestamp.Before(*filter.Since) {
			continue
		}
		cp := *e
		entries = append(entries, &cp)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[filter.Offset:]
	}
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

func (m *MemoryBackend) CountActiveTokens(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var count int64
	for jti, t := range m.tokens {
		if _, revoked := m.revocations[jti]; revoked {
			continue
		}
		if !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt) {
			continue
		}
		count++
	}
	return count, nil
}

// TamperAuditEntry overwrites a stored entry's payload in place. Only used
// by integrity tests; a real backend has no mutation path for audit rows.
func (m *MemoryBackend) TamperAuditEntry(seq int64, action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.audit {
		if e.Sequence == seq {
			e.Action = action
		}
	}
}

func (m *MemoryBackend) Close() {}
