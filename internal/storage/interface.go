package storage

import (
	"context"
	"errors"
	"time"

	"github.com/org/skillgate/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Backend defines the persistence interface for the skill gateway.
// It holds credential metadata, revocations, and the audit chain.
// Business data and raw signed tokens are never persisted.
type Backend interface {
	// Token metadata
	WriteTokenMetadata(ctx context.Context, meta *models.AccessTokenMetadata) error
	GetTokenMetadata(ctx context.Context, jti string) (*models.AccessTokenMetadata, error)
	ListTokenMetadata(ctx context.Context) ([]*models.AccessTokenMetadata, error)

	// Revocations. WriteRevocation is idempotent per jti: it reports
	// created=false when a record for the jti already exists.
	WriteRevocation(ctx context.Context, rec *models.RevocationRecord) (created bool, err error)
	GetRevocation(ctx context.Context, jti string) (*models.RevocationRecord, error)

	// Audit chain. AppendAuditEntry must persist durably before returning.
	AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	LastAuditEntry(ctx context.Context) (*models.AuditEntry, error)
	ReadAuditRange(ctx context.Context, fromSeq, toSeq int64) ([]*models.AuditEntry, error)
	QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error)

	// Metrics helpers
	CountActiveTokens(ctx context.Context) (int64, error)

	// Lifecycle
	Close()
}

// AuditFilter specifies query parameters for audit log retrieval.
type AuditFilter struct {
	Action string
	Since  *time.Time
	Limit  int
	Offset int
}
