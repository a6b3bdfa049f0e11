// Package static serves files under a root directory over HTTP with the
// caching and partial-content semantics browsers and proxies rely on.
//
// A Server resolves a request path against its root, refuses anything that
// escapes it, and answers with the file, a directory's index file, or a
// manifest-described concatenation of files. Responses carry ETag and
// Last-Modified validators, honour If-None-Match / If-Modified-Since with a
// 304, answer single byte ranges with a 206, substitute a pre-compressed
// sibling ".gz" file when the client accepts gzip, and add Cache-Control
// from ordered glob rules.
//
// # Key Components
//
//   - Server: request dispatcher (Serve, ServePath, ServeFile, ServeHTTP)
//   - FileStorage: interface for stat/open/read (see the filesystem package)
//   - CacheRules: first-match glob rules mapping paths to max-age
//   - ParseRange / NotModified / ETag: protocol helpers used by the dispatcher
//   - TransformFactory: optional per-file byte transform applied while streaming
//
// # Directory Manifests
//
// A directory with no index file may hold an index.json manifest:
//
//	{"files": ["header.html", "body.html", "footer.html"]}
//
// The listed files are served, in order, as one resource whose size is the
// sum of the parts and whose modification time is the newest part.
//
// # Example Usage
//
//	root, err := os.OpenRoot("./public")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := static.NewServer(filesystem.NewFileStorage(root), static.Options{
//	    Root: "./public",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", srv)
//
// No file contents or stats are cached between requests; freshness relies on
// conditional GET and the operating system's page cache.
//
// See the http package for a chi-based transport with method filtering, SPA
// fallback and CORS.
package static
