package static

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// DecodePath percent-decodes an escaped URL path.
// It rejects, with ErrBadRequest:
//   - a literal "%00" escape (in any case)
//   - a malformed percent escape
//   - a decoded NUL byte
func DecodePath(escaped string) (string, error) {
	if strings.Contains(strings.ToLower(escaped), "%00") {
		return "", fmt.Errorf("decode path: %w: NUL escape", ErrBadRequest)
	}

	p, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("decode path: %w: %w", ErrBadRequest, err)
	}

	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("decode path: %w: NUL byte", ErrBadRequest)
	}

	return p, nil
}

// Resolve joins a decoded request path to root and checks that the cleaned
// result is root itself or lies beneath it. root must be absolute and clean.
//
// It returns the absolute path and the same path relative to root ("." for
// the root). No filesystem access happens here; a path that escapes root
// fails with ErrForbidden.
func Resolve(root, name string) (abs, rel string, err error) {
	abs = filepath.Join(root, filepath.FromSlash(name))

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if abs != root && !strings.HasPrefix(abs, prefix) {
		return "", "", fmt.Errorf("resolve %q: %w", name, ErrForbidden)
	}

	rel, err = filepath.Rel(root, abs)
	if err != nil {
		return "", "", fmt.Errorf("resolve %q: %w", name, ErrForbidden)
	}

	return abs, rel, nil
}

// IsHiddenPath reports whether any segment of a root-relative path starts
// with a dot. It is the default HiddenFunc.
func IsHiddenPath(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == "." || seg == ".." {
			continue
		}
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
