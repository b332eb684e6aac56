// Package pagecache talks to the remote wiki page cache service and keeps
// the transient in-process handoff cache.
package pagecache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Key identifies one cached wiki.
type Key struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	RepoType string `json:"repo_type"`
	Language string `json:"language"`
}

// String renders the key for dedupe and cache lookups.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.RepoType, k.Owner, k.Repo, k.Language)
}

// Page is one generated wiki page.
type Page struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// WikiCache is the remote cache record for one wiki. The structure payload
// is opaque to the editor; it is carried through untouched on save.
type WikiCache struct {
	WikiStructure  json.RawMessage `json:"wiki_structure"`
	GeneratedPages map[string]Page `json:"generated_pages"`
}

// HasStructure reports whether the record carries a usable wiki structure.
func (w *WikiCache) HasStructure() bool {
	if w == nil || len(w.GeneratedPages) == 0 {
		return false
	}
	trimmed := string(w.WikiStructure)
	return trimmed != "" && trimmed != "null"
}

// savePayload is the write shape for the cache service.
type savePayload struct {
	Key
	WikiStructure  json.RawMessage `json:"wiki_structure"`
	GeneratedPages map[string]Page `json:"generated_pages"`
}
