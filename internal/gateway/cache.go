package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/org/skillgate/pkg/models"
)

// responseCache holds recent successful free-skill results keyed by
// skill name plus a digest of the call arguments. Entries expire after a
// TTL; expired entries are dropped lazily on access.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	result   *models.SkillResult
	storedAt time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// cacheKey digests skill name and arguments. Map keys marshal sorted under
// encoding/json, so equal argument sets produce equal keys.
func cacheKey(skillName string, args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(append([]byte(skillName+"\x00"), data...))
	return hex.EncodeToString(sum[:])
}

func (c *responseCache) get(key string) (*models.SkillResult, bool) {
	if c == nil || key == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.result, true
}

func (c *responseCache) set(key string, result *models.SkillResult) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, storedAt: time.Now()}
}
