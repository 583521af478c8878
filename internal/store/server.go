package store

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/auth"
	"github.com/danmuck/geoctl/internal/node"
	"github.com/danmuck/geoctl/internal/observability"
)

// ServerOptions configures a store node.
type ServerOptions struct {
	ID          string
	Addr        string
	CORSOrigins []string
	// Validator guards every resource route. Nil disables auth.
	Validator auth.Validator
}

// Server exposes a Service over HTTP.
type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	service *Service
	auth    auth.Validator
	router  *gin.Engine
}

var _ node.Node = (*Server)(nil)

// NewServer builds the router and registers every route.
func NewServer(service *Service, opts ServerOptions) *Server {
	observability.RegisterMetrics()
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = "store"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(log.Logger, id))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: node.NormalizeOrigins(opts.CORSOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", observability.HeaderRequestID},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     opts.Addr,
		Appeared: time.Now(),
		service:  service,
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
	return "store"
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve blocks serving HTTP on Addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("node", s.ID).Str("addr", s.Addr).Str("backend", s.service.Backend().Metadata().ID).Msg("store listening")
	return node.Serve(ctx, s, s.Addr)
}

// createBody mirrors the gateway's create request.
type createBody struct {
	Metadata struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Category    string            `json:"category"`
		Owner       string            `json:"owner"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"metadata"`
	Data        string       `json:"data"`
	Category    string       `json:"category"`
	Permissions []Permission `json:"permissions"`
}

type updateBody struct {
	Data        *string           `json:"data"`
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Permissions []Permission      `json:"permissions"`
	Attributes  map[string]string `json:"attributes"`
}

type attributeBody struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Summary is the listing shape of a resource.
type Summary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category"`
	Owner       string            `json:"owner,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CanEdit     bool              `json:"canEdit"`
	CanDelete   bool              `json:"canDelete"`
	CanCopy     bool              `json:"canCopy"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"node":    s.ID,
			"backend": s.service.Backend().Metadata().ID,
		})
	})
	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ready": true, "node": s.ID})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/", auth.Middleware(s.auth))
	api.POST("/resources", s.handleCreate)
	api.GET("/resources/:id", s.handleGet)
	api.PUT("/resources/:id", s.handleUpdate)
	api.DELETE("/resources/:id", s.handleDelete)
	api.GET("/resources/:id/attributes", s.handleAttributes)
	api.PUT("/resources/:id/attributes/:name", s.handleSetAttribute)
	api.GET("/data/:id", s.handleData)
	api.GET("/data/:id/raw", s.handleRaw)
	api.GET("/categories/:category/resources", s.handleSearch)
}

func (s *Server) handleCreate(c *gin.Context) {
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := body.Category
	if category == "" {
		category = body.Metadata.Category
	}
	attrs := make([]Attribute, 0, len(body.Metadata.Attributes))
	for name, value := range body.Metadata.Attributes {
		attrs = append(attrs, Attribute{Name: name, Value: value, Type: "STRING"})
	}
	id, err := s.service.Create(c.Request.Context(), CreateInput{
		Name:        body.Metadata.Name,
		Description: body.Metadata.Description,
		Category:    category,
		Owner:       body.Metadata.Owner,
		Data:        body.Data,
		Attributes:  attrs,
		Permissions: body.Permissions,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": strconv.FormatInt(id, 10)})
}

func (s *Server) handleGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleUpdate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := Patch{
		Data:        body.Data,
		Name:        body.Name,
		Description: body.Description,
		Permissions: body.Permissions,
	}
	for name, value := range body.Attributes {
		patch.Attributes = append(patch.Attributes, Attribute{Name: name, Value: value, Type: "STRING"})
	}
	err := s.service.Update(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAttributes(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	attrs, err := s.service.Attributes(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attributes": attrs})
}

func (s *Server) handleSetAttribute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body attributeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Type == "" {
		body.Type = "STRING"
	}
	attr := Attribute{Name: c.Param("name"), Value: body.Value, Type: body.Type}
	if err := s.service.SetAttribute(c.Request.Context(), id, attr); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleData(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := s.service.Data(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(data))
}

func (s *Server) handleRaw(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := s.service.Data(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("decode") != "datauri" {
		c.Data(http.StatusOK, "application/octet-stream", []byte(data))
		return
	}
	mediaType, payload, err := DecodeDataURI(data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, mediaType, payload)
}

func (s *Server) handleSearch(c *gin.Context) {
	start, _ := strconv.Atoi(c.DefaultQuery("start", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	total, list, err := s.service.Search(c.Request.Context(), Query{
		Category: c.Param("category"),
		Text:     c.Query("search"),
		Start:    start,
		Limit:    limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	results := make([]Summary, 0, len(list))
	for _, res := range list {
		results = append(results, Summarize(res))
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "results": results})
}

// Summarize builds the listing shape. Callers that passed auth may edit,
// delete and copy what they list.
func Summarize(res Resource) Summary {
	out := Summary{
		ID:          strconv.FormatInt(res.ID, 10),
		Name:        res.Name,
		Description: res.Description,
		Category:    res.Category,
		Owner:       res.Owner,
		CanEdit:     true,
		CanDelete:   true,
		CanCopy:     true,
	}
	if len(res.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(res.Attributes))
		for _, a := range res.Attributes {
			out.Attributes[a.Name] = a.Value
		}
	}
	return out
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("store request failed")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
