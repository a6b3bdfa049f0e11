package static

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// GzipPolicy controls when a pre-compressed sibling ".gz" file may be served
// in place of the requested file. The zero value disables it.
type GzipPolicy struct {
	Enabled bool
	// ContentType, when set, restricts substitution to matching content types.
	ContentType *regexp.Regexp
}

// Allows reports whether the policy permits gzip for contentType.
func (g GzipPolicy) Allows(contentType string) bool {
	if !g.Enabled {
		return false
	}
	return g.ContentType == nil || g.ContentType.MatchString(contentType)
}

// AcceptsGzip reports whether an Accept-Encoding header lists gzip (or x-gzip)
// with a non-zero quality.
func AcceptsGzip(h http.Header) bool {
	for _, value := range h.Values("Accept-Encoding") {
		for _, part := range strings.Split(value, ",") {
			coding, params, _ := strings.Cut(part, ";")
			coding = strings.ToLower(strings.TrimSpace(coding))
			if coding != "gzip" && coding != "x-gzip" {
				continue
			}
			if qualityIsZero(params) {
				continue
			}
			return true
		}
	}
	return false
}

func qualityIsZero(params string) bool {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil && q == 0
	}
	return false
}

// negotiateGzip substitutes file+".gz" for a single-file response when the
// policy and the client allow it and the sibling is a regular file. It never
// fails; a missing sibling leaves the response uncompressed.
func (s *Server) negotiateGzip(ctx context.Context, r *http.Request, res *resource, contentType string, header http.Header) {
	if len(res.files) != 1 || !s.opts.Gzip.Allows(contentType) || !AcceptsGzip(r.Header) {
		return
	}

	gzName := res.files[0] + ".gz"
	info, err := s.storage.Stat(ctx, gzName)
	if err != nil || !info.Regular {
		s.log.Debug("no gzip sibling", "path", gzName)
		return
	}

	header.Set("Vary", appendVary(header.Get("Vary"), "Accept-Encoding"))
	header.Set("Content-Encoding", "gzip")
	res.stat.Size = info.Size
	res.files = []string{gzName}
}

func appendVary(vary, field string) string {
	if vary == "" {
		return field
	}
	for _, existing := range strings.Split(vary, ",") {
		if strings.EqualFold(strings.TrimSpace(existing), field) {
			return vary
		}
	}
	return vary + ", " + field
}
