package models

import "time"

// AuditEntry is one record in the hash-chained audit log.
//
// Hash is SHA-256 over the previous entry's hash concatenated with the
// canonical encoding of (sequence, timestamp, action, payload), so the hash
// of entry n must equal the PrevHash of entry n+1. Entries are append-only
// and never mutated or deleted.
type AuditEntry struct {
	Sequence  int64          `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}
