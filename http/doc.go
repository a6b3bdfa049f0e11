// Package http exposes a static file server over HTTP.
//
// The handler routes every GET and HEAD request to a static.Server and turns
// its failure outcomes into responses. All other methods are answered with
// 405 Method Not Allowed and an Allow header listing GET and HEAD.
//
// # Features
//
//   - Static and SPA modes
//   - Request IDs and one structured log line per request
//   - HTML error pages, JSON errors for method and internal failures
//   - Configurable CORS support
//
// # Server Modes
//
// Static Mode: Files are served as they are found under the root. Missing
// paths are answered with 404.
//
// SPA Mode: Single Page Application mode that answers 404s with the index file
// to support client-side routing.
//
// # Usage
//
//	root, _ := os.OpenRoot("./public")
//	srv, _ := static.NewServer(filesystem.NewFileStorage(root), static.Options{Root: "./public"})
//
//	handler := http.NewHandler(&http.HandlerConfig{Mode: static.ModeSPA}, srv)
//	nethttp.ListenAndServe(":8080", handler.Router())
//
// A failure after the response status was sent cannot be reported to the
// client; the handler aborts the connection with http.ErrAbortHandler so the
// client sees a truncated response instead of a corrupt one.
package http
