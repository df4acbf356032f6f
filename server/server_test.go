package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docsift"
	"github.com/poiesic/docsift/ai"
	"github.com/poiesic/docsift/ai/mock"
	"github.com/poiesic/docsift/config"
	"github.com/poiesic/docsift/core"
	"github.com/poiesic/docsift/metrics"
)

type testServer struct {
	*Server
	engine *docsift.Engine
	dir    string
}

func newTestServer(t *testing.T, docs map[string]string, opts ...docsift.EngineOption) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Corpus.Dir = t.TempDir()
	cfg.Storage.InMemory = true
	cfg.Server.MaxUploadBytes = 1 << 10
	for name, text := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Corpus.Dir, name), []byte(text), 0o644))
	}

	opts = append([]docsift.EngineOption{
		docsift.WithProvider(mock.NewMockProvider()),
		docsift.WithMetrics(metrics.New()),
	}, opts...)
	engine, err := docsift.NewEngine(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	_ = engine.Load(context.Background())

	srv, err := New(engine)
	require.NoError(t, err)
	return &testServer{Server: srv, engine: engine, dir: cfg.Corpus.Dir}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie set", SessionCookie)
	return nil
}

func flashFrom(rec *httptest.ResponseRecorder) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie {
			v, _ := url.QueryUnescape(c.Value)
			return v
		}
	}
	return ""
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

var sampleDocs = map[string]string{
	"greeting.txt": "Hello world, a friendly greeting.",
	"pasta.txt":    "Boil pasta in salted water.",
}

func TestNew_RequiresEngine(t *testing.T) {
	srv, err := New(nil)
	assert.ErrorIs(t, err, ErrEngineRequired)
	assert.Nil(t, srv)
}

func TestHome_SetsSessionCookie(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "greeting.txt")
	assert.Contains(t, rec.Body.String(), "pasta.txt")

	cookie := sessionCookie(t, rec)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestSearch_RendersResultsAndRecordsHistory(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, postForm("/", url.Values{"query": {"hello world"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "1 result for")
	assert.Contains(t, body, "Hello world, a friendly greeting.")
	assert.NotContains(t, body, "Boil pasta in salted water.")

	cookie := sessionCookie(t, rec)
	sess, err := ts.engine.Sessions().Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world"}, sess.History)
}

func TestSearch_BlankQueryRendersHome(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, postForm("/", url.Values{"query": {"   "}}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No searches yet.")
}

func TestSearch_UnavailableProvider(t *testing.T) {
	ts := newTestServer(t, sampleDocs, docsift.WithProviderFactory(func(*ai.Config) (ai.AIProvider, error) {
		return nil, errors.New("connection refused")
	}))

	rec := ts.do(t, postForm("/", url.Values{"query": {"hello"}}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Search is currently unavailable")
}

func TestAPISearch(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q=boil+pasta", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp core.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "boil pasta", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "pasta.txt", resp.Results[0].Filename)
	assert.Equal(t, "Boil pasta in salted water.", resp.Results[0].Snippet)
}

func TestAPISearch_MissingQuery(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestAPISearch_BlankQuery(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	tests := []struct {
		target string
		query  string
	}{
		{"/api/search?q=", ""},
		{"/api/search?q=%20%20%20", "   "},
	}
	for _, tt := range tests {
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, tt.target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, tt.target)

		var resp core.QueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tt.query, resp.Query)
		assert.NotNil(t, resp.Results)
		assert.Empty(t, resp.Results)
		assert.Contains(t, rec.Body.String(), `"results":[]`)
	}
}

func TestAPISearch_Unavailable(t *testing.T) {
	ts := newTestServer(t, sampleDocs, docsift.WithProviderFactory(func(*ai.Config) (ai.AIProvider, error) {
		return nil, errors.New("connection refused")
	}))

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q=hello", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"search unavailable"}`, rec.Body.String())
}

func TestUpload_AddsSearchableDocument(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, uploadRequest(t, "../reports/Q3 notes!.txt", []byte("quarterly revenue grew")))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, "success|Uploaded Q3 notes.txt.", flashFrom(rec))

	_, err := os.Stat(filepath.Join(ts.dir, "Q3 notes.txt"))
	assert.NoError(t, err)

	results := ts.engine.Searcher().Rank(context.Background(), "quarterly revenue")
	require.Len(t, results, 1)
	assert.Equal(t, "Q3 notes.txt", results[0].Filename)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		flash    string
	}{
		{"no file", "", nil, "error|Choose a file to upload."},
		{"unsupported extension", "image.png", []byte("x"), `error|Unsupported file type for "image.png": upload a .txt, .pdf or .docx file.`},
		{"too large", "big.txt", bytes.Repeat([]byte("a "), 1<<10), `error|"big.txt" is too large: the limit is 1024 bytes.`},
		{"empty text", "blank.txt", []byte("  \n "), `error|"blank.txt" contains no text.`},
		{"invalid utf8", "bad.txt", []byte{0xff, 0xfe, 0xfd}, `error|No text could be extracted from "bad.txt".`},
		{"corrupt pdf", "broken.pdf", []byte("not a pdf"), `error|No text could be extracted from "broken.pdf".`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			rec := ts.do(t, uploadRequest(t, tt.filename, tt.content))
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.flash, flashFrom(rec))
			assert.Zero(t, ts.engine.Corpus().Len())
		})
	}
}

func TestUpload_FlashShownOnce(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: url.QueryEscape("error|Choose a file to upload.")})
	rec := ts.do(t, req)

	assert.Contains(t, rec.Body.String(), "Choose a file to upload.")
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie {
			cleared = c.MaxAge < 0
		}
	}
	assert.True(t, cleared)
}

func TestDocument(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/documents/pasta.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Boil pasta in salted water.")

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/documents/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestToggleFavorite(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/favorites/pasta.txt", nil)
	req.AddCookie(cookie)
	rec = ts.do(t, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/documents/pasta.txt", rec.Header().Get("Location"))

	sess, err := ts.engine.Sessions().Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, []string{"pasta.txt"}, sess.Favorites)

	req = httptest.NewRequest(http.MethodPost, "/favorites/pasta.txt", nil)
	req.AddCookie(cookie)
	req.Header.Set("Referer", "http://example.com/")
	req.Host = "example.com"
	rec = ts.do(t, req)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	sess, err = ts.engine.Sessions().Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Empty(t, sess.Favorites)
}

func TestToggleFavorite_UnknownDocument(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/favorites/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleFavorite_IgnoresForeignReferer(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	for _, ref := range []string{"http://evil.example/", "http://example.com//evil.example/"} {
		req := httptest.NewRequest(http.MethodPost, "/favorites/pasta.txt", nil)
		req.Host = "example.com"
		req.Header.Set("Referer", ref)
		rec := ts.do(t, req)
		assert.Equal(t, "/documents/pasta.txt", rec.Header().Get("Location"), ref)
	}
}

func TestClearHistory(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, postForm("/", url.Values{"query": {"pasta"}}))
	cookie := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/history/clear", nil)
	req.AddCookie(cookie)
	rec = ts.do(t, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	sess, err := ts.engine.Sessions().Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Empty(t, sess.History)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, sampleDocs)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	down := newTestServer(t, sampleDocs, docsift.WithProviderFactory(func(*ai.Config) (ai.AIProvider, error) {
		return nil, errors.New("connection refused")
	}))
	rec = down.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "search unavailable", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, sampleDocs)
	ts.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q=pasta", nil))

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docsift_searches_total 1")
}

func TestUnmappedRoute(t *testing.T) {
	ts := newTestServer(t, sampleDocs)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}
