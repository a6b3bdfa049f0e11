package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sagarc03/static"
)

// Server is the part of *static.Server the handler needs.
type Server interface {
	Serve(w http.ResponseWriter, r *http.Request) (*static.Result, error)
	ServeFile(w http.ResponseWriter, r *http.Request, name string, status int, header http.Header) (*static.Result, error)
	IndexFile() string
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	Mode   static.ServerMode
	CORS   CORSConfig
	Logger *slog.Logger
}

// Handler exposes a static file server over HTTP.
type Handler struct {
	config HandlerConfig
	server Server
	log    *slog.Logger
}

// NewHandler creates a new Handler with the given configuration and server.
func NewHandler(config *HandlerConfig, server Server) *Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config: *config,
		server: server,
		log:    logger,
	}
}

// Router returns an http.Handler serving GET and HEAD for every path.
// Other methods get 405 with an Allow header. In SPA mode a path that does
// not exist is answered with the index file.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(h.log))

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/*", h.handleGet)
	r.Head("/*", h.handleGet)
	r.MethodNotAllowed(h.handleMethodNotAllowed)

	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	_, err := h.server.Serve(w, r)
	if err == nil {
		return
	}

	if h.config.Mode == static.ModeSPA && static.StatusFor(err) == http.StatusNotFound && !isCommitted(err) {
		_, err = h.server.ServeFile(w, r, h.server.IndexFile(), http.StatusOK, nil)
		if err == nil {
			return
		}
	}

	h.writeFailure(w, r, err)
}

func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var respErr *static.ResponseError
	if !errors.As(err, &respErr) {
		HandleError(w, err)
		return
	}

	if respErr.Committed {
		h.log.Warn("aborting response after partial write",
			"path", r.URL.Path,
			"written", respErr.Written,
			"err", respErr.Err,
		)
		panic(http.ErrAbortHandler)
	}

	for k, v := range respErr.Header {
		w.Header()[k] = v
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(respErr.Status)
		return
	}
	writeErrorPage(w, respErr.Status, respErr.Header.Get("Server"))
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD")
	WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method "+r.Method+" is not allowed")
}

func isCommitted(err error) bool {
	var respErr *static.ResponseError
	return errors.As(err, &respErr) && respErr.Committed
}
