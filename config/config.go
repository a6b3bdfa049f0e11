package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/static"
	statichttp "github.com/sagarc03/static/http"
)

// envPrefix is prepended to every environment variable read by Load.
const envPrefix = "STATIC"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for the static file server.
type Config struct {
	Env              string                `mapstructure:"env" validate:"required,oneof=dev prod"`
	Server           ServerConfig          `mapstructure:"server"`
	Files            FilesConfig           `mapstructure:"files"`
	Headers          map[string]string     `mapstructure:"headers"`
	HeadersInline    string                `mapstructure:"headers_inline"`
	HeaderFile       string                `mapstructure:"header_file"`
	Identity         string                `mapstructure:"identity"`
	SuppressIdentity bool                  `mapstructure:"suppress_identity"`
	Gzip             GzipConfig            `mapstructure:"gzip"`
	MimeTypes        map[string]string     `mapstructure:"mime_types"`
	CORS             statichttp.CORSConfig `mapstructure:"cors"`
	Log              LogConfig             `mapstructure:"log"`

	// Cache is resolved separately because rule order matters and viper
	// does not keep the order of mapping keys.
	Cache CacheConfig `mapstructure:"-"`
	// ResponseHeaders is the merge of HeaderFile, Headers and HeadersInline,
	// in that order of increasing precedence.
	ResponseHeaders http.Header `mapstructure:"-"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"required,oneof=static spa"`
}

// FilesConfig describes the directory being served.
type FilesConfig struct {
	Root             string `mapstructure:"root" validate:"required"`
	IndexFile        string `mapstructure:"index_file" validate:"required"`
	DefaultExtension string `mapstructure:"default_extension"`
	ServeHidden      bool   `mapstructure:"serve_hidden"`
}

// GzipConfig controls serving pre-compressed ".gz" siblings.
type GzipConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ContentType string `mapstructure:"content_type" validate:"omitempty,regexp"`
}

// CacheConfig is the resolved cache setting.
type CacheConfig struct {
	Rules    static.CacheRules
	Disabled bool
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Options builds the file server options described by c.
func (c *Config) Options(logger *slog.Logger) (static.Options, error) {
	var contentType *regexp.Regexp
	if c.Gzip.ContentType != "" {
		re, err := regexp.Compile(c.Gzip.ContentType)
		if err != nil {
			return static.Options{}, fmt.Errorf("gzip content type: %w", err)
		}
		contentType = re
	}

	return static.Options{
		Root:             c.Files.Root,
		IndexFile:        c.Files.IndexFile,
		Cache:            c.Cache.Rules,
		DisableCache:     c.Cache.Disabled,
		Headers:          c.ResponseHeaders,
		Identity:         c.Identity,
		SuppressIdentity: c.SuppressIdentity,
		DefaultExtension: c.Files.DefaultExtension,
		ServeHidden:      c.Files.ServeHidden,
		Gzip: static.GzipPolicy{
			Enabled:     c.Gzip.Enabled,
			ContentType: contentType,
		},
		ContentType: static.ContentTypeWith(c.MimeTypes),
		Logger:      logger,
	}, nil
}

// HandlerConfig builds the transport configuration described by c.
func (c *Config) HandlerConfig(logger *slog.Logger) *statichttp.HandlerConfig {
	return &statichttp.HandlerConfig{
		Mode:   static.ServerMode(c.Server.Mode),
		CORS:   c.CORS,
		Logger: logger,
	}
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":              "server.port",
	"host":              "server.host",
	"mode":              "server.mode",
	"root":              "files.root",
	"index-file":        "files.index_file",
	"default-extension": "files.default_extension",
	"serve-hidden":      "files.serve_hidden",
	"server-info":       "identity",
	"suppress-identity": "suppress_identity",
	"headers":           "headers_inline",
	"header-file":       "header_file",
	"gzip":              "gzip.enabled",
	"gzip-content-type": "gzip.content_type",
	"log-level":         "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Only bind if the flag was explicitly set
		if !f.Changed {
			return
		}

		switch f.Name {
		case "cache":
			// resolved by resolveCache
			return
		case "spa":
			if f.Value.String() == "true" {
				v.Set("server.mode", string(static.ModeSPA))
			}
			return
		}

		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}
		_ = v.BindPFlag(viperKey, f)
	})
}

// setDefaults configures default values on the viper instance.
// Every key read from the environment needs a default, otherwise
// Unmarshal never asks for it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", string(static.ModeStatic))

	v.SetDefault("files.root", ".")
	v.SetDefault("files.index_file", static.DefaultIndexFile)
	v.SetDefault("files.default_extension", "")
	v.SetDefault("files.serve_hidden", false)

	v.SetDefault("headers_inline", "")
	v.SetDefault("header_file", "")
	v.SetDefault("identity", "")
	v.SetDefault("suppress_identity", false)

	v.SetDefault("gzip.enabled", false)
	v.SetDefault("gzip.content_type", "")

	v.SetDefault("cors.enabled", false)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
		if used := v.ConfigFileUsed(); used != "" {
			configFiles = []string{used}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.RegisterValidation("regexp", validRegexp); err != nil {
		return nil, fmt.Errorf("register validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// 7. Resolve the values viper cannot represent
	cache, err := resolveCache(configFiles, flags)
	if err != nil {
		return nil, err
	}
	cfg.Cache = cache

	headers, err := cfg.loadHeaders()
	if err != nil {
		return nil, err
	}
	cfg.ResponseHeaders = headers

	return &cfg, nil
}

func validRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// resolveCache picks the cache setting from, in order of precedence, the
// --cache flag, the STATIC_CACHE environment variable and the last config
// file that has a cache key. Without any of them the default rules apply.
func resolveCache(configFiles []string, flags *pflag.FlagSet) (CacheConfig, error) {
	if flags != nil {
		if f := flags.Lookup("cache"); f != nil && f.Changed {
			cache, err := ParseCacheString(f.Value.String())
			if err != nil {
				return CacheConfig{}, fmt.Errorf("cache flag: %w", err)
			}
			return cache, nil
		}
	}

	if raw, ok := os.LookupEnv(envPrefix + "_CACHE"); ok {
		cache, err := ParseCacheString(raw)
		if err != nil {
			return CacheConfig{}, fmt.Errorf("%s_CACHE: %w", envPrefix, err)
		}
		return cache, nil
	}

	for i := len(configFiles) - 1; i >= 0; i-- {
		cache, found, err := cacheFromFile(configFiles[i])
		if err != nil {
			return CacheConfig{}, fmt.Errorf("cache in %s: %w", configFiles[i], err)
		}
		if found {
			return cache, nil
		}
	}

	return CacheConfig{Rules: static.DefaultCacheRules()}, nil
}
