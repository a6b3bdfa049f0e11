package static_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/static"
	"github.com/sagarc03/static/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newTestServer(t *testing.T, files map[string]string, opts static.Options) (*static.Server, *filesystem.Store, string) {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, files)

	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	store := filesystem.NewFileStorage(root)
	opts.Root = dir
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	srv, err := static.NewServer(store, opts)
	require.NoError(t, err)
	return srv, store, dir
}

func do(srv http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func statOf(t *testing.T, store *filesystem.Store, names ...string) static.AggregateStat {
	t.Helper()
	var agg static.AggregateStat
	for _, name := range names {
		info, err := store.Stat(context.Background(), filepath.FromSlash(name))
		require.NoError(t, err)
		agg.Size += info.Size
		agg.Inode += info.Inode
		if info.ModTime.After(agg.ModTime) {
			agg.ModTime = info.ModTime
		}
	}
	return agg
}

func TestNewServer(t *testing.T) {
	_, err := static.NewServer(nil, static.Options{})
	assert.Error(t, err)

	srv, _, dir := newTestServer(t, nil, static.Options{})
	assert.Equal(t, "index.html", srv.IndexFile())
	assert.True(t, filepath.IsAbs(srv.Root()))
	assert.Equal(t, filepath.Clean(dir), srv.Root())

	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	defer func() { _ = root.Close() }()
	store := filesystem.NewFileStorage(root)

	_, err = static.NewServer(store, static.Options{Root: dir, IndexFile: "../index.html"})
	assert.Error(t, err)

	_, err = static.NewServer(store, static.Options{Root: dir, Cache: static.CacheRules{{Pattern: "[", MaxAge: 1}}})
	assert.Error(t, err)
}

func TestServer_ServesFile(t *testing.T) {
	srv, store, _ := newTestServer(t, map[string]string{"hello.txt": "hello world"}, static.Options{})

	rec := do(srv, http.MethodGet, "/hello.txt", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "static/"+static.Version, rec.Header().Get("Server"))
	assert.NotEmpty(t, rec.Header().Get("Date"))

	stat := statOf(t, store, "hello.txt")
	assert.Equal(t, static.ETag(stat), rec.Header().Get("ETag"))
	assert.Equal(t, static.LastModified(stat.ModTime), rec.Header().Get("Last-Modified"))
}

func TestServer_Head(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"hello.txt": "hello world"}, static.Options{})

	rec := do(srv, http.MethodHead, "/hello.txt", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestServer_Failures(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"public.txt":            "ok",
		".env":                  "SECRET=1",
		".git/config":           "[core]",
		"empty/placeholder.txt": "",
	}, static.Options{})

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "missing file", target: "/missing.txt", status: http.StatusNotFound},
		{name: "traversal", target: "/../etc/passwd", status: http.StatusForbidden},
		{name: "encoded traversal", target: "/%2e%2e/%2e%2e/etc/passwd", status: http.StatusForbidden},
		{name: "NUL escape", target: "/public.txt%00.png", status: http.StatusBadRequest},
		{name: "hidden file", target: "/.env", status: http.StatusNotFound},
		{name: "file in hidden directory", target: "/.git/config", status: http.StatusNotFound},
		{name: "directory without index or manifest", target: "/empty/", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodGet, tt.target, nil)

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.Equal(t, "static/"+static.Version, rec.Header().Get("Server"))
		})
	}
}

func TestServer_ConcurrentRequests(t *testing.T) {
	srv, store, _ := newTestServer(t, map[string]string{"greeting.txt": "hello world"}, static.Options{})
	etag := static.ETag(statOf(t, store, "greeting.txt"))

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		go func(i int) {
			defer wg.Done()

			switch i % 3 {
			case 0:
				rec := do(srv, http.MethodGet, "/greeting.txt", nil)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, "hello world", rec.Body.String())
				assert.Equal(t, "11", rec.Header().Get("Content-Length"))
			case 1:
				rec := do(srv, http.MethodGet, "/greeting.txt", map[string]string{"Range": "bytes=6-10"})
				assert.Equal(t, http.StatusPartialContent, rec.Code)
				assert.Equal(t, "world", rec.Body.String())
				assert.Equal(t, "bytes 6-10/11", rec.Header().Get("Content-Range"))
			case 2:
				rec := do(srv, http.MethodGet, "/greeting.txt", map[string]string{"If-None-Match": etag})
				assert.Equal(t, http.StatusNotModified, rec.Code)
				assert.Empty(t, rec.Body.String())
				assert.Equal(t, etag, rec.Header().Get("ETag"))
			}
		}(i)
	}
	wg.Wait()
}

func TestServer_ServeReturnsFailureWithoutWriting(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, static.Options{})

	rec := httptest.NewRecorder()
	result, err := srv.Serve(rec, httptest.NewRequest(http.MethodGet, "/missing.txt", nil))

	assert.Nil(t, result)
	var respErr *static.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusNotFound, respErr.Status)
	assert.Equal(t, "Not Found", respErr.Message)
	assert.False(t, respErr.Committed)
	assert.ErrorIs(t, err, static.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, static.StatusFor(err))

	assert.Empty(t, rec.Header(), "nothing is written for a failure")
	assert.Zero(t, rec.Body.Len())
}

func TestServer_ServeReportsSuccess(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"a.txt": "abc"}, static.Options{})

	rec := httptest.NewRecorder()
	result, err := srv.Serve(rec, httptest.NewRequest(http.MethodGet, "/a.txt", nil))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, "OK", result.Message)
	assert.Equal(t, int64(3), result.Written)
	assert.Equal(t, "3", result.Header.Get("Content-Length"))
}

func TestServer_DirectoryIndex(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"index.html":      "<h1>root</h1>",
		"docs/index.html": "<h1>docs</h1>",
	}, static.Options{})

	rec := do(srv, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>root</h1>", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = do(srv, http.MethodGet, "/docs/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>docs</h1>", rec.Body.String())
}

func TestServer_DirectoryRedirect(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"docs/index.html":     "<h1>docs</h1>",
		"my docs/index.html":  "<h1>spaced</h1>",
		"nomanifest/file.txt": "x",
	}, static.Options{})

	rec := do(srv, http.MethodGet, "/docs", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/docs/", rec.Header().Get("Location"))
	assert.Empty(t, rec.Body.String())

	rec = do(srv, http.MethodGet, "/docs?page=2&x=y", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/docs/?page=2&x=y", rec.Header().Get("Location"))

	rec = do(srv, http.MethodGet, "/my%20docs", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/my%20docs/", rec.Header().Get("Location"))

	rec = do(srv, http.MethodGet, "/nomanifest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CustomIndexFile(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"home.htm": "home"}, static.Options{IndexFile: "home.htm"})

	rec := do(srv, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home", rec.Body.String())
}

func TestServer_Manifest(t *testing.T) {
	srv, store, _ := newTestServer(t, map[string]string{
		"bundle/index.json": `{"files": ["a.js", "lib/b.js"]}`,
		"bundle/a.js":       "var a = 1;\n",
		"bundle/lib/b.js":   "var b = 2;\n",
	}, static.Options{})

	rec := do(srv, http.MethodGet, "/bundle/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "var a = 1;\nvar b = 2;\n", rec.Body.String())
	assert.Equal(t, "22", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	stat := statOf(t, store, "bundle/a.js", "bundle/lib/b.js")
	assert.Equal(t, static.ETag(stat), rec.Header().Get("ETag"))
	assert.Equal(t, static.LastModified(stat.ModTime), rec.Header().Get("Last-Modified"))
}

func TestServer_ManifestIgnoresRange(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"bundle/index.json": `{"files": ["a.txt", "b.txt"]}`,
		"bundle/a.txt":      "aaaa",
		"bundle/b.txt":      "bbbb",
	}, static.Options{})

	rec := do(srv, http.MethodGet, "/bundle/", map[string]string{"Range": "bytes=0-1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aaaabbbb", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Range"))
}

func TestServer_ManifestFailures(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"secret.txt":           "secret",
		"malformed/index.json": `{"files": [`,
		"empty/index.json":     `{"files": []}`,
		"missing/index.json":   `{"files": ["here.txt", "gone.txt"]}`,
		"missing/here.txt":     "here",
		"escape/index.json":    `{"files": ["../secret.txt"]}`,
		"escape2/index.json":   `{"files": ["../../etc/passwd"]}`,
		"dirs/index.json":      `{"files": ["sub"]}`,
		"dirs/sub/x.txt":       "x",
	}, static.Options{})

	tests := []struct {
		target string
		status int
	}{
		{target: "/malformed/", status: http.StatusInternalServerError},
		{target: "/empty/", status: http.StatusNotFound},
		{target: "/missing/", status: http.StatusNotFound},
		{target: "/escape2/", status: http.StatusNotFound},
		{target: "/dirs/", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(srv, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, rec.Body.String())
		})
	}

	// Entries are relative to the manifest's directory, so a sibling of the
	// directory is still inside the root.
	rec := do(srv, http.MethodGet, "/escape/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret", rec.Body.String())
}

func TestServer_HiddenFilesWhenAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{".well-known/security.txt": "contact"}, static.Options{ServeHidden: true})

	rec := do(srv, http.MethodGet, "/.well-known/security.txt", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "contact", rec.Body.String())
}

func TestServer_CustomHiddenFunc(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"private/a.txt": "a", "public/b.txt": "b"}, static.Options{
		Hidden: func(rel string) bool { return strings.HasPrefix(filepath.ToSlash(rel), "private") },
	})

	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/private/a.txt", nil).Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/public/b.txt", nil).Code)
}

func TestServer_DefaultExtension(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"about.html":         "about",
		"weird.html/x.txt":   "x",
		"contact.html":       "contact",
		"contact/index.html": "contact dir",
	}, static.Options{DefaultExtension: ".html"})

	rec := do(srv, http.MethodGet, "/about", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "about", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = do(srv, http.MethodGet, "/weird", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodGet, "/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// An existing path never falls back to the extension.
	rec = do(srv, http.MethodGet, "/contact/", nil)
	assert.Equal(t, "contact dir", rec.Body.String())
}

func TestServer_Range(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"digits.txt": "0123456789"}, static.Options{})

	tests := []struct {
		name         string
		rangeHeader  string
		status       int
		body         string
		contentRange string
	}{
		{name: "prefix", rangeHeader: "bytes=0-3", status: http.StatusPartialContent, body: "0123", contentRange: "bytes 0-3/10"},
		{name: "middle", rangeHeader: "bytes=4-6", status: http.StatusPartialContent, body: "456", contentRange: "bytes 4-6/10"},
		{name: "open ended", rangeHeader: "bytes=7-", status: http.StatusPartialContent, body: "789", contentRange: "bytes 7-9/10"},
		{name: "suffix", rangeHeader: "bytes=-2", status: http.StatusPartialContent, body: "89", contentRange: "bytes 8-9/10"},
		{name: "past end", rangeHeader: "bytes=5-10", status: http.StatusOK, body: "0123456789"},
		{name: "reversed", rangeHeader: "bytes=5-1", status: http.StatusOK, body: "0123456789"},
		{name: "multiple", rangeHeader: "bytes=0-1,3-4", status: http.StatusOK, body: "0123456789"},
		{name: "wrong unit", rangeHeader: "lines=0-1", status: http.StatusOK, body: "0123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodGet, "/digits.txt", map[string]string{"Range": tt.rangeHeader})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			assert.Equal(t, strconv.Itoa(len(tt.body)), rec.Header().Get("Content-Length"))
			assert.Equal(t, tt.contentRange, rec.Header().Get("Content-Range"))
		})
	}
}

func TestServer_Conditional(t *testing.T) {
	srv, store, _ := newTestServer(t, map[string]string{"a.css": "body{}"}, static.Options{})
	stat := statOf(t, store, "a.css")
	etag := static.ETag(stat)

	rec := do(srv, http.MethodGet, "/a.css", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, etag, rec.Header().Get("ETag"))
	assert.Equal(t, "max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Last-Modified"))

	rec = do(srv, http.MethodGet, "/a.css", map[string]string{
		"If-Modified-Since": stat.ModTime.Add(time.Minute).UTC().Format(http.TimeFormat),
	})
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = do(srv, http.MethodGet, "/a.css", map[string]string{
		"If-Modified-Since": static.LastModified(stat.ModTime),
	})
	assert.Equal(t, http.StatusNotModified, rec.Code, "Last-Modified echoed back is not modified")

	rec = do(srv, http.MethodGet, "/a.css", map[string]string{
		"If-None-Match":     etag,
		"If-Modified-Since": stat.ModTime.Add(-time.Hour).UTC().Format(http.TimeFormat),
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/a.css", map[string]string{"If-None-Match": `"stale"`})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
}

func TestServer_NoCachingAcrossRequests(t *testing.T) {
	srv, _, dir := newTestServer(t, map[string]string{"data.txt": "v1"}, static.Options{})

	first := do(srv, http.MethodGet, "/data.txt", nil)
	require.Equal(t, "v1", first.Body.String())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte("version two"), 0o644))

	second := do(srv, http.MethodGet, "/data.txt", nil)
	assert.Equal(t, "version two", second.Body.String())
	assert.NotEqual(t, first.Header().Get("ETag"), second.Header().Get("ETag"))

	require.NoError(t, os.Remove(filepath.Join(dir, "data.txt")))
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/data.txt", nil).Code)
}

func TestServer_CacheRules(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"assets/app.js": "app",
		"index.html":    "index",
	}, static.Options{Cache: static.CacheRules{
		{Pattern: "/assets/**", MaxAge: 86400},
		{Pattern: "**/*.html", MaxAge: 0},
	}})

	assert.Equal(t, "max-age=86400", do(srv, http.MethodGet, "/assets/app.js", nil).Header().Get("Cache-Control"))
	assert.Equal(t, "max-age=0", do(srv, http.MethodGet, "/index.html", nil).Header().Get("Cache-Control"))
	assert.Empty(t, do(srv, http.MethodGet, "/", nil).Header().Get("Cache-Control"), "no rule matches the bare root path")

	disabled, _, _ := newTestServer(t, map[string]string{"a.txt": "a"}, static.Options{DisableCache: true})
	assert.Empty(t, do(disabled, http.MethodGet, "/a.txt", nil).Header().Get("Cache-Control"))
}

func TestServer_HeaderPrecedence(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"a.txt": "abc"}, static.Options{
		Headers: http.Header{
			"X-Frame-Options": {"DENY"},
			"Content-Type":    {"application/x-default"},
		},
	})

	rec := do(srv, http.MethodGet, "/a.txt", nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"), "computed headers beat defaults")

	rec = httptest.NewRecorder()
	rec.Header().Set("X-Request-Id", "abc")
	req := httptest.NewRequest(http.MethodGet, "/ignored", nil)
	result, err := srv.ServePath(rec, req, "/a.txt", http.StatusOK, http.Header{
		"Content-Type":    {"text/x-custom"},
		"X-Frame-Options": {"SAMEORIGIN"},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, "text/x-custom", rec.Header().Get("Content-Type"), "per-call headers beat computed")
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"), "headers already on the writer are kept")
}

func TestServer_Identity(t *testing.T) {
	custom, _, _ := newTestServer(t, map[string]string{"a.txt": "a"}, static.Options{Identity: "files/1"})
	assert.Equal(t, "files/1", do(custom, http.MethodGet, "/a.txt", nil).Header().Get("Server"))
	assert.Equal(t, "files/1", do(custom, http.MethodGet, "/missing", nil).Header().Get("Server"))

	suppressed, _, _ := newTestServer(t, map[string]string{"a.txt": "a"}, static.Options{SuppressIdentity: true})
	assert.Empty(t, do(suppressed, http.MethodGet, "/a.txt", nil).Header().Get("Server"))
	assert.Empty(t, do(suppressed, http.MethodGet, "/missing", nil).Header().Get("Server"))
}

func TestServer_ServeFile(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"index.html": "app shell", "dir/x": "x"}, static.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/some/client/route", nil)
	result, err := srv.ServeFile(rec, req, "index.html", http.StatusOK, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, "app shell", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	_, err = srv.ServeFile(httptest.NewRecorder(), req, "dir", http.StatusOK, nil)
	assert.Equal(t, http.StatusNotFound, static.StatusFor(err))

	_, err = srv.ServeFile(httptest.NewRecorder(), req, "../outside", http.StatusOK, nil)
	assert.Equal(t, http.StatusForbidden, static.StatusFor(err))
}

func TestServer_ServeFileWithErrorStatus(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"404.html": "nothing here"}, static.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	result, err := srv.ServeFile(rec, req, "404.html", http.StatusNotFound, nil)

	require.NoError(t, err, "a streamed error page is a success outcome")
	assert.Equal(t, http.StatusNotFound, result.Status)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nothing here", rec.Body.String())
}

func TestServer_Gzip(t *testing.T) {
	files := map[string]string{
		"app.js":      "console.log('plain')",
		"app.js.gz":   "gzipped-bytes",
		"plain.css":   "body{}",
		"logo.png":    "png",
		"logo.png.gz": "png-gz",
	}
	policy := static.GzipPolicy{Enabled: true, ContentType: regexp.MustCompile(`javascript|css`)}
	srv, store, _ := newTestServer(t, files, static.Options{Gzip: policy})

	rec := do(srv, http.MethodGet, "/app.js", map[string]string{"Accept-Encoding": "br, gzip"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzipped-bytes", rec.Body.String())
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	original := statOf(t, store, "app.js")
	gz := statOf(t, store, "app.js.gz")
	original.Size = gz.Size
	assert.Equal(t, static.ETag(original), rec.Header().Get("ETag"), "validator keeps the original file's identity")

	rec = do(srv, http.MethodGet, "/app.js", nil)
	assert.Equal(t, "console.log('plain')", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Encoding"))

	rec = do(srv, http.MethodGet, "/app.js", map[string]string{"Accept-Encoding": "gzip;q=0"})
	assert.Empty(t, rec.Header().Get("Content-Encoding"))

	rec = do(srv, http.MethodGet, "/plain.css", map[string]string{"Accept-Encoding": "gzip"})
	assert.Equal(t, "body{}", rec.Body.String(), "no sibling means no substitution")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))

	rec = do(srv, http.MethodGet, "/logo.png", map[string]string{"Accept-Encoding": "gzip"})
	assert.Equal(t, "png", rec.Body.String(), "content type outside the policy")

	off, _, _ := newTestServer(t, files, static.Options{})
	rec = do(off, http.MethodGet, "/app.js", map[string]string{"Accept-Encoding": "gzip"})
	assert.Equal(t, "console.log('plain')", rec.Body.String())
}

func TestServer_GzipKeepsExistingVary(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"a.txt": "a", "a.txt.gz": "z"}, static.Options{Gzip: static.GzipPolicy{Enabled: true}})

	rec := httptest.NewRecorder()
	rec.Header().Set("Vary", "Origin")
	req := httptest.NewRequest(http.MethodGet, "/a.txt", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "Origin, Accept-Encoding", rec.Header().Get("Vary"))
}

func TestServer_TransformSkippedForGzipSibling(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"app.js":    "console.log('plain')",
		"app.js.gz": "gzipped-bytes",
	}, static.Options{Gzip: static.GzipPolicy{Enabled: true}, Transform: upper()})

	rec := do(srv, http.MethodGet, "/app.js", map[string]string{"Accept-Encoding": "gzip"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "gzipped-bytes", rec.Body.String())
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))

	rec = do(srv, http.MethodGet, "/app.js", nil)
	assert.Equal(t, "CONSOLE.LOG('PLAIN')", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Length"))
}

func upper() static.TransformFactory {
	return func(filePath, logicalPath string) (static.Transform, error) {
		return static.TransformFunc(func(dst io.Writer, src io.Reader) error {
			data, err := io.ReadAll(src)
			if err != nil {
				return err
			}
			_, err = dst.Write(bytes.ToUpper(data))
			return err
		}), nil
	}
}

func TestServer_Transform(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{
		"page.html":         "hello",
		"blob.bin":          "binary",
		"bundle/index.json": `{"files": ["a.txt", "b.txt"]}`,
		"bundle/a.txt":      "a",
		"bundle/b.txt":      "b",
	}, static.Options{Transform: upper()})

	rec := do(srv, http.MethodGet, "/page.html", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HELLO", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Length"))

	rec = do(srv, http.MethodGet, "/page.html", map[string]string{"Range": "bytes=0-1"})
	assert.Equal(t, http.StatusOK, rec.Code, "ranges are ignored for transformed resources")
	assert.Equal(t, "HELLO", rec.Body.String())

	rec = do(srv, http.MethodGet, "/blob.bin", nil)
	assert.Equal(t, "binary", rec.Body.String())
	assert.Equal(t, "6", rec.Header().Get("Content-Length"))

	rec = do(srv, http.MethodGet, "/bundle/", nil)
	assert.Equal(t, "AB", rec.Body.String())
}

func TestServer_TransformReceivesPaths(t *testing.T) {
	var gotFile, gotLogical []string
	factory := func(filePath, logicalPath string) (static.Transform, error) {
		gotFile = append(gotFile, filePath)
		gotLogical = append(gotLogical, logicalPath)
		return nil, nil
	}

	srv, _, dir := newTestServer(t, map[string]string{
		"bundle/index.json": `{"files": ["a.txt", "b.txt"]}`,
		"bundle/a.txt":      "a",
		"bundle/b.txt":      "b",
	}, static.Options{Transform: factory})

	rec := do(srv, http.MethodGet, "/bundle/", nil)

	assert.Equal(t, "ab", rec.Body.String(), "a nil transform streams unchanged")
	assert.Equal(t, []string{
		filepath.Join(dir, "bundle", "a.txt"),
		filepath.Join(dir, "bundle", "b.txt"),
	}, gotFile)
	assert.Equal(t, []string{"/bundle/", "/bundle/"}, gotLogical)
}

func TestServer_TransformFactoryError(t *testing.T) {
	factory := func(string, string) (static.Transform, error) {
		return nil, errors.New("template missing")
	}
	srv, _, _ := newTestServer(t, map[string]string{"page.html": "hello"}, static.Options{Transform: factory})

	rec := httptest.NewRecorder()
	_, err := srv.Serve(rec, httptest.NewRequest(http.MethodGet, "/page.html", nil))

	var respErr *static.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.False(t, respErr.Committed, "nothing was sent before the factory failed")
	assert.Equal(t, http.StatusInternalServerError, respErr.Status)
	assert.ErrorIs(t, err, static.ErrStream)

	rec = do(srv, http.MethodGet, "/page.html", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestServer_FailureAfterCommit(t *testing.T) {
	calls := 0
	factory := func(string, string) (static.Transform, error) {
		calls++
		if calls == 2 {
			return static.TransformFunc(func(dst io.Writer, src io.Reader) error {
				return errors.New("render failed")
			}), nil
		}
		return nil, nil
	}
	srv, _, _ := newTestServer(t, map[string]string{
		"bundle/index.json": `{"files": ["a.txt", "b.txt"]}`,
		"bundle/a.txt":      "first",
		"bundle/b.txt":      "second",
	}, static.Options{Transform: factory})

	rec := httptest.NewRecorder()
	result, err := srv.Serve(rec, httptest.NewRequest(http.MethodGet, "/bundle/", nil))

	assert.Nil(t, result)
	var respErr *static.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.True(t, respErr.Committed)
	assert.Equal(t, http.StatusOK, respErr.Status)
	assert.Equal(t, int64(5), respErr.Written)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first", rec.Body.String())

	calls = 0
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bundle/", nil))
	})
}

func TestServer_CanceledRequest(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"a.txt": "a"}, static.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/a.txt", nil).WithContext(ctx)

	_, err := srv.Serve(httptest.NewRecorder(), req)

	assert.Error(t, err)
}

func TestServer_ContentTypeOverrides(t *testing.T) {
	srv, _, _ := newTestServer(t, map[string]string{"notes.md": "# hi"}, static.Options{
		ContentType: static.ContentTypeWith(map[string]string{".md": "text/markdown; charset=utf-8"}),
	})

	rec := do(srv, http.MethodGet, "/notes.md", nil)

	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
}
