package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/org/skillgate/internal/audit"
	"github.com/org/skillgate/internal/storage"
	"github.com/org/skillgate/pkg/models"
)

// Claims are the signed contents of an access credential.
type Claims struct {
	Scope []string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService issues, validates, and revokes bearer credentials for
// premium skill access. Credentials are EdDSA-signed JWTs; the private key
// never leaves the service and raw signed tokens are never stored, only
// metadata keyed by jti.
type TokenService struct {
	store   storage.Backend
	auditor *audit.Log
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
}

// NewTokenService creates a TokenService signing with the given key.
func NewTokenService(store storage.Backend, auditor *audit.Log, priv ed25519.PrivateKey) *TokenService {
	return &TokenService{
		store:   store,
		auditor: auditor,
		priv:    priv,
		pub:     priv.Public().(ed25519.PublicKey),
	}
}

// Issue mints a signed credential binding subject, scope, jti, and expiry.
// The signed token is returned to the caller exactly once; the audit entry
// records metadata only, never the token itself.
func (s *TokenService) Issue(ctx context.Context, subject string, scope []string, ttl time.Duration) (string, string, error) {
	if subject == "" {
		return "", "", errors.New("subject must not be empty")
	}
	if ttl <= 0 {
		return "", "", errors.New("ttl must be positive")
	}

	jti := uuid.NewString()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.priv)
	if err != nil {
		return "", "", fmt.Errorf("signing credential: %w", err)
	}

	meta := &models.AccessTokenMetadata{
		Subject:   subject,
		JTI:       jti,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	if err := s.store.WriteTokenMetadata(ctx, meta); err != nil {
		return "", "", fmt.Errorf("persisting token metadata: %w", err)
	}

	// Issuance is a sensitive action: fail closed if it cannot be recorded.
	_, err = s.auditor.Append(ctx, "token.issue", map[string]any{
		"subject": s.auditor.RedactSubject(subject),
		"jti":     jti,
		"scope":   scope,
		"exp":     expiresAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", "", fmt.Errorf("auditing issuance: %w", err)
	}
	return signed, jti, nil
}

// Validate verifies signature and expiry, then checks the jti against the
// revocation store. Malformed, expired, and revoked credentials fail with
// distinct AuthError reasons.
func (s *TokenService) Validate(ctx context.Context, signed string) (*models.AccessTokenMetadata, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		return s.pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &models.AuthError{Reason: models.AuthExpired}
		}
		return nil, &models.AuthError{Reason: models.AuthMalformed}
	}
	if claims.ID == "" || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, &models.AuthError{Reason: models.AuthMalformed}
	}

	rec, err := s.store.GetRevocation(ctx, claims.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("checking revocation: %w", err)
	}
	meta := &models.AccessTokenMetadata{
		Subject:   claims.Subject,
		JTI:       claims.ID,
		Scope:     claims.Scope,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		meta.IssuedAt = claims.IssuedAt.Time
	}
	if rec != nil {
		meta.RevokedAt = &rec.RevokedAt
		return nil, &models.AuthError{Reason: models.AuthRevoked}
	}
	return meta, nil
}

// Revoke marks a jti as revoked. Idempotent: revoking an already-revoked
// jti is a no-op and writes no duplicate audit entry.
func (s *TokenService) Revoke(ctx context.Context, jti, reason string) error {
	created, err := s.store.WriteRevocation(ctx, &models.RevocationRecord{
		JTI:       jti,
		RevokedAt: time.Now().UTC(),
		Reason:    reason,
	})
	if err != nil {
		return fmt.Errorf("persisting revocation: %w", err)
	}
	if !created {
		return nil
	}
	_, err = s.auditor.Append(ctx, "token.revoke", map[string]any{
		"jti":    jti,
		"reason": reason,
	})
	if err != nil {
		return fmt.Errorf("auditing revocation: %w", err)
	}
	return nil
}

// List returns metadata tuples for every issued credential. Raw signed
// tokens are not retrievable after issuance.
func (s *TokenService) List(ctx context.Context) ([]*models.AccessTokenMetadata, error) {
	return s.store.ListTokenMetadata(ctx)
}

// ScopeCovers reports whether a credential scope grants access to the named
// skill: either the blanket premium grant, an exact name, or a glob pattern.
func ScopeCovers(scope []string, skillName string) bool {
	for _, s := range scope {
		if s == models.ScopePremiumAll || s == skillName {
			return true
		}
		if matched, err := path.Match(s, skillName); err == nil && matched {
			return true
		}
	}
	return false
}
