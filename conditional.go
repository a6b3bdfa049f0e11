package static

import (
	"net/http"
	"strconv"
	"time"
)

// entityHeaders are removed from 304 responses.
var entityHeaders = []string{
	"Content-Encoding",
	"Content-Language",
	"Content-Length",
	"Content-Location",
	"Content-MD5",
	"Content-Range",
	"Content-Type",
	"Expires",
	"Last-Modified",
}

// ETag returns the strong validator for a resource:
// the quoted string "<inode>-<size>-<mtime in unix milliseconds>".
func ETag(stat AggregateStat) string {
	return strconv.Quote(
		strconv.FormatUint(stat.Inode, 10) + "-" +
			strconv.FormatInt(stat.Size, 10) + "-" +
			strconv.FormatInt(stat.ModTime.UnixMilli(), 10),
	)
}

// LastModified formats mtime as an HTTP date.
func LastModified(mtime time.Time) string {
	return mtime.UTC().Format(http.TimeFormat)
}

// NotModified reports whether a request's validators allow a 304.
//
// It is true only when the client sent If-None-Match or a parseable
// If-Modified-Since, every header that was sent is satisfied: If-None-Match
// equals etag exactly, and If-Modified-Since is not before mtime. mtime is
// compared at second precision, the precision of Last-Modified.
func NotModified(h http.Header, etag string, mtime time.Time) bool {
	clientETag := h.Get("If-None-Match")

	var (
		clientMTime time.Time
		hasMTime    bool
	)
	if v := h.Get("If-Modified-Since"); v != "" {
		t, err := http.ParseTime(v)
		if err == nil {
			clientMTime, hasMTime = t, true
		}
	}

	if clientETag == "" && !hasMTime {
		return false
	}
	if clientETag != "" && clientETag != etag {
		return false
	}
	if hasMTime && clientMTime.Before(mtime.Truncate(time.Second)) {
		return false
	}
	return true
}

// StripEntityHeaders removes the headers a 304 response must not carry.
func StripEntityHeaders(h http.Header) {
	for _, name := range entityHeaders {
		h.Del(name)
	}
}
