// Package api exposes the orchestration engine over HTTP: intents go in,
// state and notices come out.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/auth"
	"github.com/danmuck/geoctl/internal/engine"
	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/node"
	"github.com/danmuck/geoctl/internal/observability"
	"github.com/danmuck/geoctl/internal/state"
)

// maxIntentBody bounds a posted intent; details text alone may be 500k chars.
const maxIntentBody = 8 << 20

// Dispatcher accepts intents.
type Dispatcher interface {
	Submit(ctx context.Context, in engine.Intent) error
	Instances() []engine.Instance
}

// StateReader serves the current projections.
type StateReader interface {
	Snapshot() state.Snapshot
	Notices() []events.Notice
}

type Options struct {
	ID          string
	Addr        string
	CORSOrigins []string
	Validator   auth.Validator
}

// Server is the engine node.
type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	engine Dispatcher
	state  StateReader
	auth   auth.Validator
	router *gin.Engine
}

var _ node.Node = (*Server)(nil)

func NewServer(d Dispatcher, st StateReader, opts Options) *Server {
	observability.RegisterMetrics()
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = "engine"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(log.Logger, id))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: node.NormalizeOrigins(opts.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", observability.HeaderRequestID},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     opts.Addr,
		Appeared: time.Now(),
		engine:   d,
		state:    st,
		auth:     opts.Validator,
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) NodeID() string {
	return s.ID
}

func (s *Server) Kind() string {
	return "engine"
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("node", s.ID).Str("addr", s.Addr).Msg("engine api listening")
	return node.Serve(ctx, s, s.Addr)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.Appeared).String(),
			"node":   s.ID,
		})
	})
	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ready": true, "node": s.ID})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/", auth.Middleware(s.auth))
	api.GET("/intents", s.handleInstances)
	api.GET("/intents/kinds", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"kinds": engine.Kinds()})
	})
	api.POST("/intents/:kind", s.handleSubmit)
	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.state.Snapshot())
	})
	api.GET("/notices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"notices": s.state.Notices()})
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	kind := c.Param("kind")
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIntentBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	in, err := engine.DecodeIntent(kind, raw)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.engine.Submit(c.Request.Context(), in); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "kind": in.Kind()})
}

func (s *Server) handleInstances(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instances": s.engine.Instances()})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrUnknownIntent):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidIntent):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrIntentIgnored):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("engine api request failed")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
