package static

import (
	"fmt"
	"strconv"
	"strings"
)

const rangeUnit = "bytes="

// ParseRange parses a Range header against a resource of size bytes.
//
// Only a single "bytes=<from>-<to>" range is supported. An empty from with a
// present to asks for the last to bytes; a present from with an empty to asks
// for everything from from to the end.
//
// An empty header returns an invalid range and a nil error. Any other
// header that does not produce 0 <= from <= to returns an invalid range and
// an error wrapping ErrUnsupportedRange or ErrInvalidRange; callers log it
// and serve the whole resource.
//
// ParseRange does not check to against size; that is left to the caller,
// which treats to >= size as unsatisfiable.
func ParseRange(header string, size int64) (ByteRange, error) {
	if header == "" {
		return ByteRange{}, nil
	}

	if !strings.HasPrefix(header, rangeUnit) || strings.Contains(header, ",") {
		return ByteRange{}, fmt.Errorf("parse range %q: %w", header, ErrUnsupportedRange)
	}

	fromStr, toStr, _ := strings.Cut(header[len(rangeUnit):], "-")
	from, hasFrom := parseRangeBound(fromStr)
	to, hasTo := parseRangeBound(toStr)

	last := int64(0)
	if size > 0 {
		last = size - 1
	}

	switch {
	case !hasFrom && hasTo:
		from = size - to
		to = last
	case hasFrom && !hasTo:
		to = last
	case !hasFrom && !hasTo:
		return ByteRange{}, fmt.Errorf("parse range %q: %w", header, ErrInvalidRange)
	}

	if from < 0 || from > to {
		return ByteRange{}, fmt.Errorf("parse range %q: %w", header, ErrInvalidRange)
	}

	return ByteRange{From: from, To: to, Valid: true}, nil
}

func parseRangeBound(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ContentRange formats the Content-Range value for r within size bytes.
func ContentRange(r ByteRange, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.From, r.To, size)
}
