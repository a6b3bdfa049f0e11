// Package config provides configuration loading and validation for the
// static file server.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (STATIC_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := cfg.Options(logger)
//
// # Environment Variables
//
// All config keys map to environment variables with STATIC_ prefix:
//   - server.port → STATIC_SERVER_PORT
//   - files.root → STATIC_FILES_ROOT
//   - gzip.enabled → STATIC_GZIP_ENABLED
//
// # Cache Rules
//
// The cache setting is a boolean, a max-age in seconds, or a mapping of glob
// pattern to max-age. Mapping order is significant because the first
// matching pattern wins, so the cache key is read straight from the YAML or
// JSON config file instead of through viper. The --cache flag and the
// STATIC_CACHE variable take the same forms as text:
//
//	cache:
//	  "**/*.js": 60
//	  "**": 3600
//
// # Headers
//
// Extra response headers come from header_file, then headers, then the
// --headers flag (a JSON object), each overriding the one before. Names and
// values are checked with golang.org/x/net/http/httpguts.
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Mode must be static or spa
//   - gzip.content_type must compile as a regular expression
//   - Log level must be debug, info, warn, or error
package config
