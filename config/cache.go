package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sagarc03/static"
)

var errInvalidCache = errors.New("cache must be a boolean, a max-age in seconds or a mapping of glob to max-age")

// ParseCacheString parses a cache setting given as text, as it arrives from
// a flag or an environment variable: "false", "true", "3600" or a JSON/YAML
// mapping such as {"**/*.js": 60, "**": 3600}.
func ParseCacheString(raw string) (CacheConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CacheConfig{}, errInvalidCache
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return CacheConfig{}, fmt.Errorf("parse cache: %w", err)
	}
	node := unwrapDocument(&doc)
	if node == nil || node.ShortTag() == "!!str" {
		return CacheConfig{}, fmt.Errorf("parse cache %q: %w", raw, errInvalidCache)
	}

	return ParseCache(node)
}

// ParseCache decodes a cache setting from a YAML node. A boolean true keeps
// the default rules and false disables caching headers. An integer is the
// max-age of a single catch-all rule. A mapping keeps its key order, which
// is the order rules are matched in. A string is parsed with
// ParseCacheString.
func ParseCache(node *yaml.Node) (CacheConfig, error) {
	node = unwrapDocument(node)
	if node == nil {
		return CacheConfig{Rules: static.DefaultCacheRules()}, nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		return parseCacheScalar(node)
	case yaml.MappingNode:
		return parseCacheMapping(node)
	default:
		return CacheConfig{}, errInvalidCache
	}
}

func parseCacheScalar(node *yaml.Node) (CacheConfig, error) {
	switch node.ShortTag() {
	case "!!null":
		return CacheConfig{Rules: static.DefaultCacheRules()}, nil
	case "!!bool":
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return CacheConfig{}, fmt.Errorf("parse cache: %w", err)
		}
		if !enabled {
			return CacheConfig{Disabled: true}, nil
		}
		return CacheConfig{Rules: static.DefaultCacheRules()}, nil
	case "!!int":
		var maxAge int
		if err := node.Decode(&maxAge); err != nil {
			return CacheConfig{}, fmt.Errorf("parse cache: %w", err)
		}
		rules := static.CacheFor(maxAge)
		if err := rules.Validate(); err != nil {
			return CacheConfig{}, err
		}
		return CacheConfig{Rules: rules}, nil
	case "!!str":
		return ParseCacheString(node.Value)
	default:
		return CacheConfig{}, fmt.Errorf("parse cache %q: %w", node.Value, errInvalidCache)
	}
}

func parseCacheMapping(node *yaml.Node) (CacheConfig, error) {
	rules := make(static.CacheRules, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var maxAge int
		if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!int" {
			return CacheConfig{}, fmt.Errorf("parse cache: max-age for %q must be an integer", key.Value)
		}
		if err := value.Decode(&maxAge); err != nil {
			return CacheConfig{}, fmt.Errorf("parse cache: %w", err)
		}
		rules = append(rules, static.CacheRule{Pattern: key.Value, MaxAge: maxAge})
	}

	if err := rules.Validate(); err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{Rules: rules}, nil
}

// cacheFromFile looks for a top-level cache key in a YAML or JSON config
// file. Other formats are skipped.
func cacheFromFile(path string) (CacheConfig, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return CacheConfig{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CacheConfig{}, false, nil
		}
		return CacheConfig{}, false, fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return CacheConfig{}, false, fmt.Errorf("parse config: %w", err)
	}

	root := unwrapDocument(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return CacheConfig{}, false, nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "cache" {
			continue
		}
		cache, err := ParseCache(root.Content[i+1])
		if err != nil {
			return CacheConfig{}, false, err
		}
		return cache, true, nil
	}

	return CacheConfig{}, false, nil
}

func unwrapDocument(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	return node
}
