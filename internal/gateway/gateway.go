// Package gateway resolves inbound skill calls to either a real handler
// invocation or a payment-required stub, enforcing credentials, rate
// limits, and audit recording on the way.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/org/skillgate/internal/audit"
	"github.com/org/skillgate/internal/auth"
	"github.com/org/skillgate/internal/ratelimit"
	"github.com/org/skillgate/internal/registry"
	"github.com/org/skillgate/pkg/models"
	"github.com/rs/zerolog/log"
)

// Config tunes gateway behavior.
type Config struct {
	// CallTimeout bounds a single handler invocation.
	CallTimeout time.Duration
	// CallCost is charged against the caller's rate bucket per dispatch.
	CallCost int
	// CacheTTL enables the free-skill response cache when positive.
	CacheTTL time.Duration
}

// Gateway multiplexes skill calls across tiers.
type Gateway struct {
	registry *registry.Registry
	tokens   *auth.TokenService
	limiter  *ratelimit.Limiter
	auditor  *audit.Log
	cache    *responseCache
	timeout  time.Duration
	cost     int
}

// New creates a fully wired Gateway.
func New(reg *registry.Registry, tokens *auth.TokenService, limiter *ratelimit.Limiter, auditor *audit.Log, cfg Config) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.CallCost <= 0 {
		cfg.CallCost = 1
	}
	g := &Gateway{
		registry: reg,
		tokens:   tokens,
		limiter:  limiter,
		auditor:  auditor,
		timeout:  cfg.CallTimeout,
		cost:     cfg.CallCost,
	}
	if cfg.CacheTTL > 0 {
		g.cache = newResponseCache(cfg.CacheTTL)
	}
	return g
}

// Dispatch resolves a skill call. credential is the raw bearer token (empty
// for anonymous callers); anonKey identifies unauthenticated callers for
// rate limiting. The returned envelope is always non-nil: every failure
// mode maps to a structured status, never a crash or a raw error.
func (g *Gateway) Dispatch(ctx context.Context, skillName, credential string, args map[string]any, anonKey string) *models.SkillResult {
	entry, ok := g.registry.Snapshot().Get(skillName)
	if !ok {
		return errorResult(models.ErrSkillNotFound.Error())
	}

	// Free calls are keyed by client address even when a credential rides
	// along: the free path never validates it, and an unverified subject
	// claim would be a spoofable rate key.
	subjectKey := "anon:" + anonKey
	premium := entry.Descriptor.Tier == models.TierPremium

	if premium {
		// Any credential failure on a premium skill collapses into the
		// fixed stub: no handler details, no validity oracle.
		if credential == "" {
			g.auditPremium(ctx, skillName, subjectKey, "denied_no_credential")
			return models.PaymentRequiredResult()
		}
		meta, err := g.tokens.Validate(ctx, credential)
		if err != nil {
			g.auditPremium(ctx, skillName, subjectKey, "denied_invalid_credential")
			return models.PaymentRequiredResult()
		}
		if !auth.ScopeCovers(meta.Scope, skillName) {
			g.auditPremium(ctx, skillName, meta.Subject, "denied_scope")
			return models.PaymentRequiredResult()
		}
		subjectKey = meta.Subject
	}

	// Charging happens before invocation: a failed call is still paid for.
	if ok, retryAfter := g.limiter.Allow(subjectKey, g.cost); !ok {
		if premium {
			g.auditPremium(ctx, skillName, subjectKey, "denied_rate_limited")
		}
		res := errorResult((&models.RateLimitError{RetryAfter: retryAfter}).Error())
		res.Data = map[string]any{"retry_after_seconds": retryAfter.Seconds()}
		return res
	}

	var key string
	if !premium && g.cache != nil {
		key = cacheKey(skillName, args)
		if cached, hit := g.cache.get(key); hit {
			return cached
		}
	}

	data, err := g.invoke(ctx, skillName, entry.Handler, args)
	if err != nil {
		if premium {
			g.auditPremium(ctx, skillName, subjectKey, "error")
		}
		return errorResult(err.Error())
	}

	result := &models.SkillResult{
		Status:    models.StatusSuccess,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	if premium {
		g.auditPremium(ctx, skillName, subjectKey, "success")
	} else if g.cache != nil {
		g.cache.set(key, result)
	}
	return result
}

// invoke runs a handler inside a recovered call boundary with a bounded
// timeout. A panicking or hanging handler becomes a SkillExecutionError,
// never a gateway crash.
func (g *Gateway) invoke(ctx context.Context, skillName string, handler func(context.Context, map[string]any) (map[string]any, error), args map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		data map[string]any
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("skill", skillName).Any("panic", r).Msg("skill handler panicked")
				done <- outcome{err: &models.SkillExecutionError{
					Skill: skillName,
					Cause: fmt.Errorf("handler panic: %v", r),
				}}
			}
		}()
		data, err := handler(ctx, args)
		if err != nil {
			err = &models.SkillExecutionError{Skill: skillName, Cause: err}
		}
		done <- outcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		return out.data, out.err
	case <-ctx.Done():
		return nil, &models.SkillExecutionError{Skill: skillName, Cause: ctx.Err()}
	}
}

func (g *Gateway) auditPremium(ctx context.Context, skillName, subject, outcome string) {
	_, err := g.auditor.Append(ctx, "dispatch.premium", map[string]any{
		"skill":   skillName,
		"subject": g.auditor.RedactSubject(subject),
		"outcome": outcome,
	})
	if err != nil {
		log.Error().Err(err).Str("skill", skillName).Msg("failed to audit premium dispatch")
	}
}

func errorResult(msg string) *models.SkillResult {
	return &models.SkillResult{
		Status:    models.StatusError,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}
