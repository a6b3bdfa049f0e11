package static

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Version is reported in the default identity header.
const Version = "0.1.0"

// DefaultIndexFile is served for directory requests.
const DefaultIndexFile = "index.html"

// HiddenFunc reports whether a root-relative path is hidden.
type HiddenFunc func(rel string) bool

// Options configures a Server. The zero value serves the current directory
// with the default cache rule and no gzip.
type Options struct {
	// Root is the directory served. It is made absolute and cleaned.
	Root string
	// IndexFile is served for directory requests (default "index.html").
	IndexFile string
	// Cache rules; nil means DefaultCacheRules unless DisableCache is set.
	Cache        CacheRules
	DisableCache bool
	// Headers are added to every response with the lowest precedence.
	Headers http.Header
	// Identity is sent as the Server header (default "static/<Version>").
	Identity         string
	SuppressIdentity bool
	// DefaultExtension is tried, without its dot, when a path does not exist.
	DefaultExtension string
	ServeHidden      bool
	Gzip             GzipPolicy
	Transform        TransformFactory
	ContentType      ContentTypeFunc
	Hidden           HiddenFunc
	Logger           *slog.Logger
}

// Server answers requests for files under a root directory. It keeps no
// per-request state and is safe for concurrent use.
type Server struct {
	storage  FileStorage
	opts     Options
	cache    CacheRules
	identity string
	log      *slog.Logger
}

// NewServer creates a Server reading files through storage. opts.Root must
// name the same directory storage is rooted at; it is used to enforce
// containment before storage is touched.
func NewServer(storage FileStorage, opts Options) (*Server, error) {
	if storage == nil {
		return nil, errors.New("new server: storage cannot be nil")
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("new server: resolve root: %w", err)
	}
	opts.Root = filepath.Clean(root)

	if opts.IndexFile == "" {
		opts.IndexFile = DefaultIndexFile
	}
	if filepath.IsAbs(opts.IndexFile) || strings.HasPrefix(filepath.Clean(opts.IndexFile), "..") {
		return nil, fmt.Errorf("new server: index file must be relative: %s", opts.IndexFile)
	}
	opts.DefaultExtension = strings.TrimPrefix(opts.DefaultExtension, ".")

	cache := opts.Cache
	switch {
	case opts.DisableCache:
		cache = nil
	case cache == nil:
		cache = DefaultCacheRules()
	}
	if err := cache.Validate(); err != nil {
		return nil, fmt.Errorf("new server: %w", err)
	}

	identity := opts.Identity
	if identity == "" {
		identity = "static/" + Version
	}

	headers := opts.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	if !opts.SuppressIdentity && headers.Get("Server") == "" {
		headers.Set("Server", identity)
	}
	opts.Headers = headers

	if opts.ContentType == nil {
		opts.ContentType = DefaultContentType
	}
	if opts.Hidden == nil {
		opts.Hidden = IsHiddenPath
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		storage:  storage,
		opts:     opts,
		cache:    cache,
		identity: identity,
		log:      logger,
	}, nil
}

// Root returns the absolute directory the server resolves paths against.
func (s *Server) Root() string {
	return s.opts.Root
}

// IndexFile returns the configured index file name.
func (s *Server) IndexFile() string {
	return s.opts.IndexFile
}

// ServeHTTP implements http.Handler. Failures are written directly as a
// status line and headers with an empty body. A failure after the response
// was committed aborts the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, err := s.Serve(w, r)
	if err == nil {
		return
	}

	var respErr *ResponseError
	if !errors.As(err, &respErr) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if respErr.Committed {
		panic(http.ErrAbortHandler)
	}
	WriteFailure(w, respErr)
}

// WriteFailure writes a failure outcome's headers and status.
func WriteFailure(w http.ResponseWriter, respErr *ResponseError) {
	copyHeader(w.Header(), respErr.Header)
	w.WriteHeader(respErr.Status)
}

// Serve answers r from the request URL path. On success the response has
// been written and the outcome is returned. On failure nothing has been
// written unless the returned *ResponseError is Committed; the caller
// decides how to render it (see WriteFailure).
func (s *Server) Serve(w http.ResponseWriter, r *http.Request) (*Result, error) {
	name, err := DecodePath(r.URL.EscapedPath())
	if err != nil {
		return s.fail(w, http.StatusBadRequest, err)
	}
	return s.ServePath(w, r, name, http.StatusOK, nil)
}

// ServePath answers r with the file or directory at name, a decoded path
// relative to the root. status is used for successful full responses and
// header entries override the computed ones.
func (s *Server) ServePath(w http.ResponseWriter, r *http.Request, name string, status int, header http.Header) (*Result, error) {
	ctx := r.Context()
	perCall := mergeHeader(w.Header(), header)

	_, rel, err := Resolve(s.opts.Root, name)
	if err != nil {
		s.log.Warn("path escapes root", "path", name)
		return s.fail(w, http.StatusForbidden, err)
	}

	info, err := s.storage.Stat(ctx, rel)
	if err != nil {
		return s.serveDefaultExtension(w, r, rel, status, perCall, err)
	}

	switch {
	case !s.opts.ServeHidden && s.opts.Hidden(rel):
		return s.fail(w, http.StatusNotFound, fmt.Errorf("serve %q: hidden: %w", name, ErrNotFound))
	case info.Regular:
		return s.respond(w, r, singleFile(rel, info), status, perCall)
	case info.IsDir:
		return s.serveDir(w, r, rel, status, perCall)
	default:
		return s.fail(w, http.StatusBadRequest, fmt.Errorf("serve %q: not a regular file: %w", name, ErrBadRequest))
	}
}

// ServeFile answers r with the regular file at name regardless of the
// request URL, e.g. an SPA entry point.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, name string, status int, header http.Header) (*Result, error) {
	perCall := mergeHeader(w.Header(), header)

	_, rel, err := Resolve(s.opts.Root, name)
	if err != nil {
		return s.fail(w, http.StatusForbidden, err)
	}

	info, err := s.storage.Stat(r.Context(), rel)
	if err != nil {
		return s.fail(w, http.StatusNotFound, fmt.Errorf("serve file %q: %w", name, err))
	}
	if !info.Regular {
		return s.fail(w, http.StatusNotFound, fmt.Errorf("serve file %q: not a regular file: %w", name, ErrNotFound))
	}

	return s.respond(w, r, singleFile(rel, info), status, perCall)
}

func (s *Server) serveDefaultExtension(w http.ResponseWriter, r *http.Request, rel string, status int, perCall http.Header, statErr error) (*Result, error) {
	if s.opts.DefaultExtension == "" {
		return s.fail(w, http.StatusNotFound, fmt.Errorf("serve %q: %w", rel, statErr))
	}

	alt := rel + "." + s.opts.DefaultExtension
	info, err := s.storage.Stat(r.Context(), alt)
	switch {
	case err != nil:
		return s.fail(w, http.StatusNotFound, fmt.Errorf("serve %q: %w", alt, err))
	case !info.Regular:
		return s.fail(w, http.StatusBadRequest, fmt.Errorf("serve %q: not a regular file: %w", alt, ErrBadRequest))
	}

	return s.respond(w, r, singleFile(alt, info), status, perCall)
}

// respond picks the content type, applies cache rules and gzip negotiation,
// then hands over to respondResource.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, res *resource, status int, perCall http.Header) (*Result, error) {
	contentType := perCall.Get("Content-Type")
	if contentType == "" {
		contentType = s.opts.ContentType(res.files[0])
	}

	if cc := s.cache.CacheControl(r.URL.Path); cc != "" {
		perCall.Set("Cache-Control", cc)
	}

	if s.opts.Gzip.Enabled {
		s.negotiateGzip(r.Context(), r, res, contentType, perCall)
	}

	return s.respondResource(w, r, res, status, contentType, perCall)
}

// respondResource evaluates the Range and conditional headers, builds the
// final header set and streams the body.
func (s *Server) respondResource(w http.ResponseWriter, r *http.Request, res *resource, status int, contentType string, perCall http.Header) (*Result, error) {
	transforming := s.opts.Transform != nil && isTextLike(contentType) && perCall.Get("Content-Encoding") == ""
	size := res.stat.Size
	start, length := int64(0), size

	h := http.Header{}

	byteRange, err := ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		s.log.Warn("ignoring range header", "path", r.URL.Path, "err", err)
	}
	if byteRange.Valid {
		switch {
		case len(res.files) != 1:
			s.log.Warn("range requests are not supported for manifest resources", "path", r.URL.Path)
		case transforming:
			s.log.Warn("ignoring range header for transformed resource", "path", r.URL.Path)
		case byteRange.To >= size:
			s.log.Warn("range exceeds resource size", "path", r.URL.Path, "to", byteRange.To, "size", size)
		default:
			start, length = byteRange.From, byteRange.Length()
			status = http.StatusPartialContent
			h.Set("Content-Range", ContentRange(byteRange, size))
		}
	}

	copyHeader(h, s.opts.Headers)

	etag := ETag(res.stat)
	h.Set("ETag", etag)
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	h.Set("Last-Modified", LastModified(res.stat.ModTime))
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(length, 10))

	copyHeader(h, perCall)

	if transforming {
		h.Del("Content-Length")
	}

	if NotModified(r.Header, etag, res.stat.ModTime) {
		StripEntityHeaders(h)
		return s.finish(w, http.StatusNotModified, h, false, 0, nil)
	}

	written, committed, err := s.stream(w, r, res, streamPlan{
		status:       status,
		header:       h,
		start:        start,
		length:       length,
		transforming: transforming,
	})
	if err != nil {
		if r.Context().Err() != nil {
			s.log.Debug("client went away", "path", r.URL.Path, "written", written)
		} else {
			s.log.Error("stream failed", "path", r.URL.Path, "written", written, "err", err)
		}
		if committed {
			return nil, &ResponseError{
				Result: Result{
					Status:  status,
					Header:  h,
					Message: http.StatusText(status),
					Written: written,
				},
				Committed: true,
				Err:       fmt.Errorf("%w: %w", ErrStream, err),
			}
		}
		return s.finish(w, http.StatusInternalServerError, nil, false, written, fmt.Errorf("%w: %w", ErrStream, err))
	}

	return s.finish(w, status, h, true, written, nil)
}

// finish produces the single outcome of a request. Failures (status 0 or
// >= 400) are returned as *ResponseError without writing. Successes write
// status and headers unless the body has been streamed already. A streamed
// body is always a success, even under an error status chosen by the caller
// of ServePath or ServeFile.
func (s *Server) finish(w http.ResponseWriter, status int, header http.Header, streaming bool, written int64, cause error) (*Result, error) {
	if header == nil {
		header = http.Header{}
	}
	if !s.opts.SuppressIdentity {
		header.Set("Server", s.identity)
	}

	result := Result{
		Status:  status,
		Header:  header,
		Message: http.StatusText(status),
		Written: written,
	}

	if !streaming && (status == 0 || status >= http.StatusBadRequest) {
		if status == 0 {
			result.Status = http.StatusInternalServerError
			result.Message = http.StatusText(result.Status)
		}
		return nil, &ResponseError{Result: result, Err: cause}
	}

	if !streaming {
		copyHeader(w.Header(), header)
		w.WriteHeader(status)
	}

	return &result, nil
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) (*Result, error) {
	s.log.Debug("request failed", "status", status, "err", err)
	return s.finish(w, status, nil, false, 0, err)
}

// mergeHeader returns a copy of base with override's entries replacing it.
func mergeHeader(base, override http.Header) http.Header {
	merged := base.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	copyHeader(merged, override)
	return merged
}

// copyHeader replaces dst's values with src's, key by key.
func copyHeader(dst, src http.Header) {
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
}
