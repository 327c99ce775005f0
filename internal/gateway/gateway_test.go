package gateway

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/org/skillgate/internal/audit"
	"github.com/org/skillgate/internal/auth"
	"github.com/org/skillgate/internal/crypto"
	"github.com/org/skillgate/internal/ratelimit"
	"github.com/org/skillgate/internal/registry"
	"github.com/org/skillgate/internal/skills"
	"github.com/org/skillgate/internal/storage"
	"github.com/org/skillgate/pkg/models"
)

type fixture struct {
	gw      *Gateway
	tokens  *auth.TokenService
	store   *storage.MemoryBackend
	calls   *atomic.Int64
	limiter *ratelimit.Limiter
}

func descriptor(name string, tier models.Tier) models.SkillDescriptor {
	return models.SkillDescriptor{
		Name:        name,
		Description: "test " + name,
		Tier:        tier,
		ParameterSchema: map[string]models.ParameterSpec{
			"x": {Type: "number"},
		},
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	_, priv, err := crypto.GenerateSigningKey()
	if err != nil {
		t.Fatalf("generating signing key: %v", err)
	}
	store := storage.NewMemoryBackend()
	auditor := audit.NewLog(store, nil)
	tokens := auth.NewTokenService(store, auditor, priv)

	calls := &atomic.Int64{}
	regs := []skills.Registration{
		{
			Descriptor: descriptor("echo", models.TierFree),
			Handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
				calls.Add(1)
				return map[string]any{"echo": args["x"]}, nil
			},
		},
		{
			Descriptor: descriptor("panicky", models.TierFree),
			Handler: func(_ context.Context, _ map[string]any) (map[string]any, error) {
				panic("boom")
			},
		},
		{
			Descriptor: descriptor("slow", models.TierFree),
			Handler: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
				select {
				case <-time.After(time.Second):
					return map[string]any{}, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
		{
			Descriptor: descriptor("premium_calc", models.TierPremium),
			Handler: func(_ context.Context, _ map[string]any) (map[string]any, error) {
				calls.Add(1)
				return map[string]any{"value": 42.0}, nil
			},
		},
	}
	reg, warnings := registry.New(func() []skills.Registration { return regs })
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	limiter := ratelimit.NewLimiter(1000, 1000, 0)
	return &fixture{
		gw:      New(reg, tokens, limiter, auditor, cfg),
		tokens:  tokens,
		store:   store,
		calls:   calls,
		limiter: limiter,
	}
}

func TestDispatchFreeSkill(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.gw.Dispatch(context.Background(), "echo", "", map[string]any{"x": 1.0}, "10.0.0.1")
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want success (err: %s)", res.Status, res.Error)
	}
	if res.Data["echo"] != 1.0 {
		t.Errorf("data = %v", res.Data)
	}
}

func TestDispatchUnknownSkill(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.gw.Dispatch(context.Background(), "nope", "", nil, "10.0.0.1")
	if res.Status != models.StatusError {
		t.Errorf("status = %q, want error", res.Status)
	}
	if !strings.Contains(res.Error, "not found") {
		t.Errorf("error = %q, want skill not found", res.Error)
	}
}

func TestPremiumWithoutCredential(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.gw.Dispatch(context.Background(), "premium_calc", "", nil, "10.0.0.1")
	if res.Status != models.StatusPaymentRequired {
		t.Fatalf("status = %q, want payment_required", res.Status)
	}
	if f.calls.Load() != 0 {
		t.Error("handler must never run behind the paywall")
	}
}

func TestPremiumScopedCredentialLifecycle(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	signed, jti, err := f.tokens.Issue(ctx, "agent-1", []string{models.ScopePremiumAll}, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	res := f.gw.Dispatch(ctx, "premium_calc", signed, nil, "10.0.0.1")
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want success (err: %s)", res.Status, res.Error)
	}

	if err := f.tokens.Revoke(ctx, jti, "test"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	res = f.gw.Dispatch(ctx, "premium_calc", signed, nil, "10.0.0.1")
	if res.Status != models.StatusPaymentRequired {
		t.Errorf("revoked credential should yield payment_required, got %q", res.Status)
	}
}

func TestPremiumInsufficientScope(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	signed, _, err := f.tokens.Issue(ctx, "agent-1", []string{"some_other_skill"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	res := f.gw.Dispatch(ctx, "premium_calc", signed, nil, "10.0.0.1")
	if res.Status != models.StatusPaymentRequired {
		t.Errorf("out-of-scope credential should yield payment_required, got %q", res.Status)
	}
}

func TestPremiumDispatchesAudited(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	signed, _, _ := f.tokens.Issue(ctx, "agent-1", []string{models.ScopePremiumAll}, time.Hour)
	f.gw.Dispatch(ctx, "premium_calc", signed, nil, "10.0.0.1") // success
	f.gw.Dispatch(ctx, "premium_calc", "", nil, "10.0.0.1")     // denial

	entries, err := f.store.QueryAuditLog(ctx, storage.AuditFilter{Action: "dispatch.premium"})
	if err != nil {
		t.Fatalf("querying audit log: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 dispatch.premium entries (success and denial), got %d", len(entries))
	}
}

func TestHandlerPanicIsolated(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.gw.Dispatch(context.Background(), "panicky", "", nil, "10.0.0.1")
	if res.Status != models.StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if !strings.Contains(res.Error, "execution failed") {
		t.Errorf("error = %q, want execution failure", res.Error)
	}

	// Gateway survives and keeps serving.
	res = f.gw.Dispatch(context.Background(), "echo", "", map[string]any{"x": 2.0}, "10.0.0.1")
	if res.Status != models.StatusSuccess {
		t.Error("gateway should keep serving after a handler panic")
	}
}

func TestHandlerTimeout(t *testing.T) {
	f := newFixture(t, Config{CallTimeout: 10 * time.Millisecond})
	res := f.gw.Dispatch(context.Background(), "slow", "", nil, "10.0.0.1")
	if res.Status != models.StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if !strings.Contains(res.Error, "execution failed") {
		t.Errorf("error = %q, want execution failure", res.Error)
	}
}

func TestRateLimitDenial(t *testing.T) {
	f := newFixture(t, Config{})
	// Swap in a tight limiter: capacity 2, slow refill.
	f.gw.limiter = ratelimit.NewLimiter(0.1, 2, 0)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if res := f.gw.Dispatch(ctx, "echo", "", map[string]any{"x": float64(i)}, "10.0.0.1"); res.Status != models.StatusSuccess {
			t.Fatalf("call %d should pass, got %q", i, res.Status)
		}
	}
	res := f.gw.Dispatch(ctx, "echo", "", map[string]any{"x": 9.0}, "10.0.0.1")
	if res.Status != models.StatusError {
		t.Fatalf("status = %q, want rate limit error", res.Status)
	}
	if !strings.Contains(res.Error, "rate limit") {
		t.Errorf("error = %q", res.Error)
	}
	if res.Data["retry_after_seconds"].(float64) <= 0 {
		t.Error("rate limit denial should carry retry_after_seconds")
	}
}

func TestFreeCallsRateLimitedByAddress(t *testing.T) {
	f := newFixture(t, Config{})
	f.gw.limiter = ratelimit.NewLimiter(0.1, 2, 0)
	ctx := context.Background()

	signed, _, err := f.tokens.Issue(ctx, "agent-1", []string{models.ScopePremiumAll}, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Free calls charge the caller's address bucket whether or not a
	// credential is presented; the credential buys no separate bucket.
	for i := 0; i < 2; i++ {
		if res := f.gw.Dispatch(ctx, "echo", signed, map[string]any{"x": float64(i)}, "10.0.0.1"); res.Status != models.StatusSuccess {
			t.Fatalf("call %d should pass, got %q", i, res.Status)
		}
	}
	res := f.gw.Dispatch(ctx, "echo", "", map[string]any{"x": 9.0}, "10.0.0.1")
	if res.Status != models.StatusError || !strings.Contains(res.Error, "rate limit") {
		t.Errorf("same address should be exhausted regardless of credential, got %q (%s)", res.Status, res.Error)
	}
}

func TestFreeResponseCache(t *testing.T) {
	f := newFixture(t, Config{CacheTTL: time.Minute})
	ctx := context.Background()
	args := map[string]any{"x": 7.0}

	for i := 0; i < 3; i++ {
		if res := f.gw.Dispatch(ctx, "echo", "", args, "10.0.0.1"); res.Status != models.StatusSuccess {
			t.Fatalf("dispatch %d failed: %s", i, res.Error)
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("handler ran %d times, want 1 (cache hits)", got)
	}

	// Different args miss the cache.
	f.gw.Dispatch(ctx, "echo", "", map[string]any{"x": 8.0}, "10.0.0.1")
	if got := f.calls.Load(); got != 2 {
		t.Errorf("handler ran %d times, want 2", got)
	}
}
