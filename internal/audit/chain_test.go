package audit

import (
	"context"
	"strconv"
	"testing"

	"github.com/org/skillgate/internal/storage"
)

func TestAppendLinksChain(t *testing.T) {
	ctx := context.Background()
	log := NewLog(storage.NewMemoryBackend(), nil)

	first, err := log.Append(ctx, "token.issue", map[string]any{"jti": "a"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if first.Sequence != 0 {
		t.Errorf("expected sequence 0, got %d", first.Sequence)
	}
	if first.PrevHash != "" {
		t.Errorf("genesis entry should have empty prev_hash, got %q", first.PrevHash)
	}

	second, err := log.Append(ctx, "token.revoke", map[string]any{"jti": "a"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if second.Sequence != 1 {
		t.Errorf("expected sequence 1, got %d", second.Sequence)
	}
	if second.PrevHash != first.Hash {
		t.Errorf("entry 1 prev_hash = %q, want hash of entry 0 %q", second.PrevHash, first.Hash)
	}
}

func TestVerifyChainOK(t *testing.T) {
	ctx := context.Background()
	log := NewLog(storage.NewMemoryBackend(), nil)

	for i := 0; i < 25; i++ {
		if _, err := log.Append(ctx, "dispatch.premium", map[string]any{"skill": "s" + strconv.Itoa(i)}); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	ok, broken, err := log.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if !ok {
		t.Errorf("expected intact chain, first broken = %d", broken)
	}
	if broken != -1 {
		t.Errorf("expected firstBroken -1, got %d", broken)
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	log := NewLog(storage.NewMemoryBackend(), nil)
	ok, broken, err := log.VerifyChain(context.Background())
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if !ok || broken != -1 {
		t.Errorf("empty chain should verify, got ok=%v broken=%d", ok, broken)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	log := NewLog(store, nil)

	for i := 0; i < 10; i++ {
		if _, err := log.Append(ctx, "token.issue", map[string]any{"n": i}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// Mutating a single stored entry must be reported as exactly that
	// sequence being the first break.
	store.TamperAuditEntry(4, "token.revoke")

	ok, broken, err := log.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if ok {
		t.Fatal("expected broken chain after tampering")
	}
	if broken != 4 {
		t.Errorf("expected first broken sequence 4, got %d", broken)
	}
}

func TestAppendResumesAfterRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()

	log := NewLog(store, nil)
	if _, err := log.Append(ctx, "token.issue", nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// A fresh Log over the same backend continues the chain.
	log2 := NewLog(store, nil)
	e, err := log2.Append(ctx, "token.revoke", nil)
	if err != nil {
		t.Fatalf("Append after restart failed: %v", err)
	}
	if e.Sequence != 1 {
		t.Errorf("expected sequence 1 after restart, got %d", e.Sequence)
	}

	ok, _, err := log2.VerifyChain(ctx)
	if err != nil || !ok {
		t.Errorf("chain should remain intact across restarts (ok=%v err=%v)", ok, err)
	}
}

func TestRedactSubject(t *testing.T) {
	key := make([]byte, 32)
	key[0] = 1
	log := NewLog(storage.NewMemoryBackend(), key)

	a := log.RedactSubject("agent-7")
	b := log.RedactSubject("agent-7")
	c := log.RedactSubject("agent-8")

	if a != b {
		t.Error("redaction should be stable for the same subject")
	}
	if a == c {
		t.Error("different subjects should redact differently")
	}
	if a == "agent-7" {
		t.Error("redacted subject must not equal the raw subject")
	}
}
