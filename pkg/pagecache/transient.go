package pagecache

import "sync"

// TransientCache hands freshly edited page content to a subsequent view
// without a round trip to the cache service. Entries are consumed on read.
type TransientCache struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewTransientCache returns an empty handoff cache.
func NewTransientCache() *TransientCache {
	return &TransientCache{entries: make(map[string]string)}
}

// Set stores content under pageKey, replacing any previous entry.
func (t *TransientCache) Set(pageKey, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[pageKey] = content
}

// Take removes and returns the content stored under pageKey.
func (t *TransientCache) Take(pageKey string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	content, ok := t.entries[pageKey]
	if ok {
		delete(t.entries, pageKey)
	}
	return content, ok
}

// Len returns the number of pending handoffs.
func (t *TransientCache) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
