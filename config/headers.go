package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"
)

// ParseHeaders decodes a JSON or YAML mapping of header name to value.
// Scalar values of any type are accepted and rendered as text.
func ParseHeaders(data []byte) (http.Header, error) {
	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse headers: %w", err)
	}

	values := make(map[string]string, len(raw))
	for name, value := range raw {
		switch value.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("parse headers: value of %q must be a scalar", name)
		case nil:
			values[name] = ""
		default:
			values[name] = fmt.Sprint(value)
		}
	}

	return headersFrom(values)
}

// LoadHeaderFile reads a header mapping from a JSON or YAML file.
func LoadHeaderFile(path string) (http.Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read header file: %w", err)
	}

	h, err := ParseHeaders(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// headersFrom validates and canonicalizes header names and values.
func headersFrom(values map[string]string) (http.Header, error) {
	h := make(http.Header, len(values))
	for name, value := range values {
		name = strings.TrimSpace(name)
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, fmt.Errorf("invalid header name %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, fmt.Errorf("invalid value for header %q", name)
		}
		h.Set(name, value)
	}
	return h, nil
}

func (c *Config) loadHeaders() (http.Header, error) {
	merged := http.Header{}

	if c.HeaderFile != "" {
		h, err := LoadHeaderFile(c.HeaderFile)
		if err != nil {
			return nil, fmt.Errorf("load headers: %w", err)
		}
		mergeInto(merged, h)
	}

	if len(c.Headers) > 0 {
		h, err := headersFrom(c.Headers)
		if err != nil {
			return nil, fmt.Errorf("load headers: %w", err)
		}
		mergeInto(merged, h)
	}

	if c.HeadersInline != "" {
		h, err := ParseHeaders([]byte(c.HeadersInline))
		if err != nil {
			return nil, fmt.Errorf("load headers: %w", err)
		}
		mergeInto(merged, h)
	}

	return merged, nil
}

func mergeInto(dst, src http.Header) {
	for name, values := range src {
		dst[name] = values
	}
}
