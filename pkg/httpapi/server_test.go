package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/redline/pkg/pagecache"
	"github.com/odvcencio/redline/pkg/suggest"
)

type scriptedStreamer struct {
	chunks []string
}

func (f *scriptedStreamer) Stream(_ context.Context, _ suggest.Request) (<-chan string, <-chan error) {
	out := make(chan string, len(f.chunks))
	errs := make(chan error, 1)
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	close(errs)
	return out, errs
}

// newCacheStub serves a single-page wiki cache and records saves.
func newCacheStub(t *testing.T, content string, saves *int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"wiki_structure": map[string]any{"title": "Wiki"},
				"generated_pages": map[string]any{
					"page-1": map[string]any{"id": "page-1", "title": "Overview", "content": content},
				},
			})
		case http.MethodPost:
			if saves != nil {
				*saves++
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

func newTestServer(t *testing.T, provider suggest.Streamer, cacheURL string) *httptest.Server {
	t.Helper()

	srv := NewServer(Options{
		Provider:        provider,
		PageCache:       pagecache.NewClient(cacheURL),
		Transient:       pagecache.NewTransientCache(),
		AllowManualEdit: true,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()

	body := `{"repoUrl":"https://github.com/alice/wiki","pageId":"page-1"}`
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.SessionID)
	return created.SessionID
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &scriptedStreamer{}, "http://localhost:0")

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSession_LoadsPage(t *testing.T) {
	cache := newCacheStub(t, "# Overview\n\nBody text.", nil)
	defer cache.Close()
	ts := newTestServer(t, &scriptedStreamer{}, cache.URL)

	body := `{"repoUrl":"https://github.com/alice/wiki","pageId":"page-1"}`
	resp := postJSON(t, ts.URL+"/api/sessions", body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "# Overview\n\nBody text.", created.Document)
	assert.Equal(t, "Overview", created.PageTitle)
}

func TestCreateSession_UnknownPage(t *testing.T) {
	cache := newCacheStub(t, "content", nil)
	defer cache.Close()
	ts := newTestServer(t, &scriptedStreamer{}, cache.URL)

	body := `{"repoUrl":"https://github.com/alice/wiki","pageId":"missing"}`
	resp := postJSON(t, ts.URL+"/api/sessions", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHighlightLifecycle(t *testing.T) {
	cache := newCacheStub(t, "The quick brown fox", nil)
	defer cache.Close()
	ts := newTestServer(t, &scriptedStreamer{}, cache.URL)
	id := createSession(t, ts)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/highlights", ts.URL, id), `{"start":4,"end":9}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var added struct {
		Highlights []struct {
			Text string `json:"text"`
		} `json:"highlights"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&added))
	require.Len(t, added.Highlights, 1)
	assert.Equal(t, "quick", added.Highlights[0].Text)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/sessions/%s/highlights", ts.URL, id), nil)
	clearResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer clearResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, clearResp.StatusCode)
}

func TestAddHighlight_OutOfBounds(t *testing.T) {
	cache := newCacheStub(t, "short", nil)
	defer cache.Close()
	ts := newTestServer(t, &scriptedStreamer{}, cache.URL)
	id := createSession(t, ts)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/highlights", ts.URL, id), `{"start":0,"end":999}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmit_StreamsAndApplies(t *testing.T) {
	cache := newCacheStub(t, "Old content", nil)
	defer cache.Close()
	provider := &scriptedStreamer{chunks: []string{
		"Rewrote it.\n\n### Revised Document\n\n",
		"New content",
	}}
	ts := newTestServer(t, provider, cache.URL)
	id := createSession(t, ts)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/submit", ts.URL, id), `{"prompt":"rewrite"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)

	var last struct {
		Outcome struct {
			Kind            string `json:"kind"`
			DocumentChanged bool   `json:"documentChanged"`
			Diff            string `json:"diff"`
		} `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "revision", last.Outcome.Kind)
	assert.True(t, last.Outcome.DocumentChanged)
	assert.Contains(t, last.Outcome.Diff, "+New content")

	docResp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/document", ts.URL, id))
	require.NoError(t, err)
	defer docResp.Body.Close()

	var doc documentResponse
	require.NoError(t, json.NewDecoder(docResp.Body).Decode(&doc))
	assert.Equal(t, "New content", doc.Document)
	assert.True(t, doc.Pending)
}

func TestSubmit_BlockedWhilePending(t *testing.T) {
	cache := newCacheStub(t, "Old", nil)
	defer cache.Close()
	provider := &scriptedStreamer{chunks: []string{"### Revised Document\n\nNew"}}
	ts := newTestServer(t, provider, cache.URL)
	id := createSession(t, ts)

	first := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/submit", ts.URL, id), `{"prompt":"edit"}`)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/submit", ts.URL, id), `{"prompt":"again"}`)
	defer second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestRevisionAcceptReject(t *testing.T) {
	cache := newCacheStub(t, "Old", nil)
	defer cache.Close()
	provider := &scriptedStreamer{chunks: []string{"### Revised Document\n\nNew"}}
	ts := newTestServer(t, provider, cache.URL)
	id := createSession(t, ts)

	submit := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/submit", ts.URL, id), `{"prompt":"edit"}`)
	submit.Body.Close()

	reject := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/revision/reject", ts.URL, id), `{}`)
	defer reject.Body.Close()
	require.Equal(t, http.StatusOK, reject.StatusCode)

	var rejected map[string]string
	require.NoError(t, json.NewDecoder(reject.Body).Decode(&rejected))
	assert.Equal(t, "Old", rejected["document"])

	// Nothing left to accept.
	accept := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/revision/accept", ts.URL, id), `{}`)
	defer accept.Body.Close()
	assert.Equal(t, http.StatusConflict, accept.StatusCode)
}

func TestManualEdit(t *testing.T) {
	cache := newCacheStub(t, "Old", nil)
	defer cache.Close()
	ts := newTestServer(t, &scriptedStreamer{}, cache.URL)
	id := createSession(t, ts)

	req, _ := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/sessions/%s/document", ts.URL, id),
		strings.NewReader(`{"content":"Edited"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	docResp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/document", ts.URL, id))
	require.NoError(t, err)
	defer docResp.Body.Close()

	var doc documentResponse
	require.NoError(t, json.NewDecoder(docResp.Body).Decode(&doc))
	assert.Equal(t, "Edited", doc.Document)
}

func TestSelectionEndpoints(t *testing.T) {
	cache := newCacheStub(t, "The quick brown fox", nil)
	defer cache.Close()
	ts := newTestServer(t, &scriptedStreamer{}, cache.URL)
	id := createSession(t, ts)

	sel := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/selection", ts.URL, id),
		`{"start":4,"end":9,"text":"quick","rect":{"left":10,"top":20,"right":30,"bottom":40}}`)
	defer sel.Body.Close()
	require.Equal(t, http.StatusOK, sel.StatusCode)

	var selected struct {
		State  string `json:"state"`
		Anchor struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"anchor"`
	}
	require.NoError(t, json.NewDecoder(sel.Body).Decode(&selected))
	assert.Equal(t, "active", selected.State)
	assert.Equal(t, 20.0, selected.Anchor.X)

	confirm := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/selection/confirm", ts.URL, id), `{}`)
	defer confirm.Body.Close()
	require.Equal(t, http.StatusOK, confirm.StatusCode)

	var confirmed struct {
		Confirmed  bool `json:"confirmed"`
		Highlights []struct {
			Text string `json:"text"`
		} `json:"highlights"`
		VerbatimMatches int `json:"verbatimMatches"`
	}
	require.NoError(t, json.NewDecoder(confirm.Body).Decode(&confirmed))
	assert.True(t, confirmed.Confirmed)
	require.Len(t, confirmed.Highlights, 1)
	assert.Equal(t, "quick", confirmed.Highlights[0].Text)
	assert.Equal(t, 1, confirmed.VerbatimMatches)
}

func TestSave(t *testing.T) {
	var saves int
	cache := newCacheStub(t, "Old", &saves)
	defer cache.Close()
	ts := newTestServer(t, &scriptedStreamer{}, cache.URL)
	id := createSession(t, ts)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/save", ts.URL, id), `{}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, saves)
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t, &scriptedStreamer{}, "http://localhost:0")

	resp, err := http.Get(ts.URL + "/api/sessions/nope/document")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCloseSession(t *testing.T) {
	cache := newCacheStub(t, "Old", nil)
	defer cache.Close()
	ts := newTestServer(t, &scriptedStreamer{}, cache.URL)
	id := createSession(t, ts)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/sessions/%s", ts.URL, id), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	docResp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/document", ts.URL, id))
	require.NoError(t, err)
	defer docResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, docResp.StatusCode)
}
