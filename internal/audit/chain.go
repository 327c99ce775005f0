package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/org/skillgate/internal/storage"
	"github.com/org/skillgate/pkg/models"
)

// timestampLayout fixes microsecond precision so canonical encodings survive
// a round trip through TIMESTAMPTZ columns.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Log is an append-only, hash-chained audit log. Appends are serialized
// behind a single mutex so the chain has one deterministic order; chain
// verification is a read-only scan that runs concurrently with appends.
type Log struct {
	store        storage.Backend
	redactionKey []byte

	mu       sync.Mutex
	loaded   bool
	lastSeq  int64
	lastHash string
}

// NewLog creates an audit Log on top of the given backend. redactionKey is
// used to pseudonymize caller subjects in payloads; it may be nil in tests.
func NewLog(store storage.Backend, redactionKey []byte) *Log {
	return &Log{store: store, redactionKey: redactionKey}
}

// Append records an action with a redaction-safe payload. The entry is
// persisted durably before Append returns; a successful return means the
// entry is on the chain. Secret material must never be passed in payload.
func (l *Log) Append(ctx context.Context, action string, payload map[string]any) (*models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		if err := l.loadTail(ctx); err != nil {
			return nil, err
		}
	}

	entry := &models.AuditEntry{
		Sequence:  l.lastSeq + 1,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		Action:    action,
		Payload:   payload,
		PrevHash:  l.lastHash,
	}
	hash, err := computeHash(entry.PrevHash, entry.Sequence, entry.Timestamp, entry.Action, entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("hashing audit entry: %w", err)
	}
	entry.Hash = hash

	if err := l.store.AppendAuditEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting audit entry: %w", err)
	}
	l.lastSeq = entry.Sequence
	l.lastHash = entry.Hash
	return entry, nil
}

// loadTail positions the writer after the last persisted entry.
func (l *Log) loadTail(ctx context.Context) error {
	last, err := l.store.LastAuditEntry(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			l.lastSeq = -1
			l.lastHash = ""
			l.loaded = true
			return nil
		}
		return fmt.Errorf("loading audit tail: %w", err)
	}
	l.lastSeq = last.Sequence
	l.lastHash = last.Hash
	l.loaded = true
	return nil
}

// VerifyChain recomputes every hash from sequence 0 over the prefix present
// at call time and returns (ok, firstBrokenSequence). firstBroken is -1 when
// the chain is intact. Insertion, deletion, and modification all surface as
// the first sequence whose stored linkage or hash no longer matches.
func (l *Log) VerifyChain(ctx context.Context) (bool, int64, error) {
	last, err := l.store.LastAuditEntry(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return true, -1, nil // empty chain is trivially intact
		}
		return false, 0, err
	}

	entries, err := l.store.ReadAuditRange(ctx, 0, last.Sequence)
	if err != nil {
		return false, 0, err
	}

	prevHash := ""
	for i, e := range entries {
		if e.Sequence != int64(i) {
			return false, int64(i), nil
		}
		if e.PrevHash != prevHash {
			return false, e.Sequence, nil
		}
		hash, err := computeHash(e.PrevHash, e.Sequence, e.Timestamp, e.Action, e.Payload)
		if err != nil {
			return false, e.Sequence, nil
		}
		if hash != e.Hash {
			return false, e.Sequence, nil
		}
		prevHash = e.Hash
	}
	if int64(len(entries)) != last.Sequence+1 {
		// Entries missing from the middle collapse onto the first gap above;
		// a truncated read is reported at the boundary.
		return false, int64(len(entries)), nil
	}
	return true, -1, nil
}

// Query retrieves audit log entries for the admin surface.
func (l *Log) Query(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error) {
	return l.store.QueryAuditLog(ctx, filter)
}

// RedactSubject returns a stable pseudonymous identifier for a caller
// subject. Raw subjects and raw tokens never appear in audit payloads.
func (l *Log) RedactSubject(subject string) string {
	if len(l.redactionKey) == 0 {
		return subject
	}
	mac := hmac.New(sha256.New, l.redactionKey)
	mac.Write([]byte(subject))
	return "sub_" + hex.EncodeToString(mac.Sum(nil))[:16]
}

// canonicalEntry fixes the field order of the hashed content. Payload maps
// marshal with sorted keys under encoding/json, so the encoding is
// deterministic and reproducible at verification time.
type canonicalEntry struct {
	Sequence  int64          `json:"sequence"`
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload"`
}

func computeHash(prevHash string, seq int64, ts time.Time, action string, payload map[string]any) (string, error) {
	canonical, err := json.Marshal(canonicalEntry{
		Sequence:  seq,
		Timestamp: ts.UTC().Format(timestampLayout),
		Action:    action,
		Payload:   payload,
	})
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
