package pagecache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	rlerrors "github.com/odvcencio/redline/pkg/errors"
)

const cachePath = "/api/wiki_cache"

// Client reads and writes wiki cache records on the remote service.
// Writes are last-write-wins merges of a single page's content.
type Client struct {
	baseURL    string
	httpClient *http.Client
	loads      singleflight.Group
}

// NewClient creates a page cache client against baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Load fetches the cache record for key. Concurrent loads for the same key
// collapse into one request.
func (c *Client) Load(ctx context.Context, key Key) (*WikiCache, error) {
	v, err, _ := c.loads.Do(key.String(), func() (any, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*WikiCache), nil
}

func (c *Client) fetch(ctx context.Context, key Key) (*WikiCache, error) {
	q := url.Values{}
	q.Set("owner", key.Owner)
	q.Set("repo", key.Repo)
	q.Set("repo_type", key.RepoType)
	q.Set("language", key.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+cachePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, rlerrors.Wrap(err, rlerrors.ErrCodeInternal, "building cache request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, rlerrors.Wrap(err, rlerrors.ErrCodeStorageRead, "fetching wiki cache").WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, rlerrors.New(rlerrors.ErrCodeCacheMiss, "no cached wiki for repository").
			WithContext("key", key.String())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, rlerrors.New(rlerrors.ErrCodeStorageRead,
			fmt.Sprintf("cache service returned status %d", resp.StatusCode))
	}

	var cache WikiCache
	if err := json.NewDecoder(resp.Body).Decode(&cache); err != nil {
		return nil, rlerrors.Wrap(err, rlerrors.ErrCodeCacheBadShape, "decoding wiki cache")
	}
	return &cache, nil
}

// SavePage merges one page's updated content into the cached record and
// writes the whole record back. A record without the expected structure is
// a save conflict surfaced to the user; there is no retry.
func (c *Client) SavePage(ctx context.Context, key Key, pageID, content string) error {
	cache, err := c.fetch(ctx, key)
	if err != nil {
		if rlerrors.IsCode(err, rlerrors.ErrCodeCacheMiss) {
			return saveConflict(key, pageID)
		}
		return err
	}

	if !cache.HasStructure() {
		return saveConflict(key, pageID)
	}
	page, ok := cache.GeneratedPages[pageID]
	if !ok {
		return saveConflict(key, pageID)
	}

	page.Content = content
	page.UpdatedAt = time.Now().UTC()
	cache.GeneratedPages[pageID] = page

	payload, err := json.Marshal(savePayload{
		Key:            key,
		WikiStructure:  cache.WikiStructure,
		GeneratedPages: cache.GeneratedPages,
	})
	if err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeStorageWrite, "encoding wiki cache")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+cachePath, bytes.NewReader(payload))
	if err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeInternal, "building cache save request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeStorageWrite, "saving wiki cache").WithRetryable(true)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return rlerrors.New(rlerrors.ErrCodeStorageWrite,
			fmt.Sprintf("cache service returned status %d on save", resp.StatusCode))
	}
	return nil
}

func saveConflict(key Key, pageID string) error {
	return rlerrors.New(rlerrors.ErrCodeSaveConflict, "cached wiki missing expected structure").
		WithContext("key", key.String()).
		WithContext("page", pageID).
		WithUserMessage("Could not save: the wiki cache no longer has this page. Regenerate the wiki and try again.")
}
