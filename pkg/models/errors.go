package models

import (
	"errors"
	"fmt"
	"time"
)

// AuthReason classifies a credential failure. Malformed, expired, and
// revoked credentials are distinguishable in message but follow the same
// code path shape to avoid timing oracles.
type AuthReason string

const (
	AuthMalformed AuthReason = "malformed"
	AuthExpired   AuthReason = "expired"
	AuthRevoked   AuthReason = "revoked"
)

// AuthError is returned when a credential fails validation.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("credential %s", e.Reason)
}

// RateLimitError is returned when a caller exceeds its token bucket.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// SkillExecutionError wraps a handler fault (error or recovered panic).
// Handler faults are isolated and converted, never propagated as a crash.
type SkillExecutionError struct {
	Skill string
	Cause error
}

func (e *SkillExecutionError) Error() string {
	return fmt.Sprintf("skill %q execution failed: %v", e.Skill, e.Cause)
}

func (e *SkillExecutionError) Unwrap() error { return e.Cause }

// ErrSkillNotFound is returned when a requested skill is not in the catalog.
var ErrSkillNotFound = errors.New("skill not found")

// ErrChainBroken indicates an audit chain integrity violation. This is the
// one error class that escalates to an operator instead of being absorbed.
var ErrChainBroken = errors.New("audit chain integrity violation")
