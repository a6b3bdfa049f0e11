package static

import (
	"mime"
	"path/filepath"
	"strings"
)

const defaultContentType = "application/octet-stream"

// ContentTypeFunc maps a file name to its Content-Type.
type ContentTypeFunc func(name string) string

// DefaultContentType looks the extension up with mime.TypeByExtension and
// falls back to application/octet-stream.
func DefaultContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return defaultContentType
}

// ContentTypeWith returns a ContentTypeFunc that consults overrides (keyed by
// extension, with or without the leading dot, case-insensitive) before
// DefaultContentType.
func ContentTypeWith(overrides map[string]string) ContentTypeFunc {
	if len(overrides) == 0 {
		return DefaultContentType
	}

	normalized := make(map[string]string, len(overrides))
	for ext, ct := range overrides {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[ext] = ct
	}

	return func(name string) string {
		if ct, ok := normalized[strings.ToLower(filepath.Ext(name))]; ok {
			return ct
		}
		return DefaultContentType(name)
	}
}

// isTextLike reports whether a transform may be applied to contentType.
func isTextLike(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	return strings.HasPrefix(mediaType, "text/") ||
		mediaType == "application/json" ||
		strings.HasSuffix(mediaType, "+json") ||
		strings.HasSuffix(mediaType, "+xml") ||
		strings.HasPrefix(mediaType, "application/javascript")
}
