package pagecache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rlerrors "github.com/odvcencio/redline/pkg/errors"
)

var testKey = Key{Owner: "alice", Repo: "wiki", RepoType: "github", Language: "en"}

func cacheRecord() WikiCache {
	return WikiCache{
		WikiStructure: json.RawMessage(`{"title":"Wiki","pages":[{"id":"overview"}]}`),
		GeneratedPages: map[string]Page{
			"overview": {ID: "overview", Title: "Overview", Content: "original content"},
		},
	}
}

func TestLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, cachePath, r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("owner"))
		assert.Equal(t, "github", r.URL.Query().Get("repo_type"))
		json.NewEncoder(w).Encode(cacheRecord())
	}))
	defer server.Close()

	client := NewClient(server.URL)
	cache, err := client.Load(context.Background(), testKey)
	require.NoError(t, err)

	assert.True(t, cache.HasStructure())
	assert.Equal(t, "original content", cache.GeneratedPages["overview"].Content)
}

func TestLoad_Miss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Load(context.Background(), testKey)
	require.Error(t, err)
	assert.True(t, rlerrors.IsCode(err, rlerrors.ErrCodeCacheMiss))
}

func TestSavePage_MergesContent(t *testing.T) {
	var saved savePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(cacheRecord())
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.SavePage(context.Background(), testKey, "overview", "revised content")
	require.NoError(t, err)

	assert.Equal(t, "alice", saved.Owner)
	assert.Equal(t, "revised content", saved.GeneratedPages["overview"].Content)
	assert.False(t, saved.GeneratedPages["overview"].UpdatedAt.IsZero())
	assert.JSONEq(t, `{"title":"Wiki","pages":[{"id":"overview"}]}`, string(saved.WikiStructure),
		"structure must pass through untouched")
}

func TestSavePage_ConflictOnMissingStructure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(WikiCache{
			GeneratedPages: map[string]Page{"overview": {Content: "x"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.SavePage(context.Background(), testKey, "overview", "new")
	require.Error(t, err)
	assert.True(t, rlerrors.IsCode(err, rlerrors.ErrCodeSaveConflict))
}

func TestSavePage_ConflictOnUnknownPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cacheRecord())
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.SavePage(context.Background(), testKey, "missing-page", "new")
	require.Error(t, err)
	assert.True(t, rlerrors.IsCode(err, rlerrors.ErrCodeSaveConflict))
}

func TestSavePage_ConflictOnCacheMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.SavePage(context.Background(), testKey, "overview", "new")
	require.Error(t, err)
	assert.True(t, rlerrors.IsCode(err, rlerrors.ErrCodeSaveConflict))
}

func TestTransientCache(t *testing.T) {
	cache := NewTransientCache()

	cache.Set("alice/wiki/overview", "fresh content")
	assert.Equal(t, 1, cache.Len())

	got, ok := cache.Take("alice/wiki/overview")
	assert.True(t, ok)
	assert.Equal(t, "fresh content", got)

	_, ok = cache.Take("alice/wiki/overview")
	assert.False(t, ok, "handoff entries are consumed on read")
}
