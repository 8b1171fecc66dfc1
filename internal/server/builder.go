// Package server assembles the HTTP surface: the translation endpoint, the
// upstream passthrough, health/metadata, metrics, and the admin probe.
package server

import (
	"net/http"

	"gtranslate-go/internal/config"
	"gtranslate-go/internal/credential"
	"gtranslate-go/internal/dedup"
	"gtranslate-go/internal/kvstore"
	"gtranslate-go/internal/logging"
	"gtranslate-go/internal/middleware"
	"gtranslate-go/internal/translate"
	"gtranslate-go/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the wired core components.
type Server struct {
	cfg       *config.Config
	store     kvstore.Store
	pool      *credential.Pool
	engine    *translate.Engine
	executor  *upstream.Executor
	coalescer *dedup.Coalescer
	probeHTTP *http.Client
}

func New(cfg *config.Config, store kvstore.Store, pool *credential.Pool, engine *translate.Engine, executor *upstream.Executor, coalescer *dedup.Coalescer) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		pool:      pool,
		engine:    engine,
		executor:  executor,
		coalescer: coalescer,
		probeHTTP: &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

// Router builds the gin engine with the full middleware chain and routes.
func (s *Server) Router() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	if s.cfg.RateLimitEnabled {
		r.Use(middleware.RateLimiterAutoKey(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
	}

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/logs/stream", func(c *gin.Context) {
		logging.GetStreamLogger().HandleConnection(c)
	})

	// Bare /translate redirects here with the method preserved; the key
	// segment is then empty and header extraction takes over.
	r.POST("/translate/*key", s.handleTranslate)

	r.Any("/v1/*path", s.handlePassthrough)
	r.Any("/v1beta/*path", s.handlePassthrough)
	r.Any("/providers/:provider/*path", s.handlePassthrough)

	if s.cfg.ManagementKey != "" {
		admin := r.Group("/admin", s.requireManagementKey)
		admin.POST("/keys/probe", s.handleKeyProbe)
	}

	return r
}
