package models

import "time"

// ScopePremiumAll grants access to every premium skill.
const ScopePremiumAll = "premium:all"

// AccessTokenMetadata is the stored record of an issued credential.
// The raw signed token is returned to the caller exactly once at issuance
// and is never persisted or retrievable afterwards.
type AccessTokenMetadata struct {
	Subject   string     `json:"subject"`
	JTI       string     `json:"jti"`
	Scope     []string   `json:"scope"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IsExpired returns true if the credential has passed its expiry time.
func (t *AccessTokenMetadata) IsExpired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// IsRevoked returns true if the credential has been revoked.
func (t *AccessTokenMetadata) IsRevoked() bool {
	return t.RevokedAt != nil
}

// RevocationRecord marks a jti as revoked. Revocation is idempotent:
// only the first revocation for a jti is recorded.
type RevocationRecord struct {
	JTI       string    `json:"jti"`
	RevokedAt time.Time `json:"revoked_at"`
	Reason    string    `json:"reason"`
}
