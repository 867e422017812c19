package gemini

import (
	"errors"
	"strings"
	"sync/atomic"
)

// ErrNoKeys is returned when a key pool would be empty
var ErrNoKeys = errors.New("no API keys configured")

// KeyPool hands out API keys in round-robin order. Every call to Next
// advances the cursor, whether or not the request that used the key
// succeeded. It is safe for concurrent use.
type KeyPool struct {
	keys   []string
	cursor atomic.Uint64
}

// NewKeyPool creates a pool from the given keys, dropping blank entries
func NewKeyPool(keys []string) (*KeyPool, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoKeys
	}
	return &KeyPool{keys: cleaned}, nil
}

// ParseKeyList splits a comma-separated key list such as GEMINI_API_KEYS
func ParseKeyList(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Next returns the next key in rotation
func (p *KeyPool) Next() string {
	n := p.cursor.Add(1) - 1
	return p.keys[n%uint64(len(p.keys))]
}

// Size returns the number of keys in the pool
func (p *KeyPool) Size() int {
	return len(p.keys)
}
