package server

import (
	"context"
	"time"

	"github.com/gemini2openai/api-proxy/internal/config"
	"github.com/gemini2openai/api-proxy/internal/models"
	"github.com/gemini2openai/api-proxy/internal/translator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Upstream is the dispatcher the handlers send translated requests to.
// Both calls return the raw body and HTTP status; a non-nil error means the
// call itself failed (connection, timeout) and no status is available.
type Upstream interface {
	GenerateContent(ctx context.Context, model string, body []byte) ([]byte, int, error)
	ListModels(ctx context.Context) ([]byte, int, error)
}

// Server represents the API server
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	upstream Upstream
	safety   []models.SafetySetting
	metrics  *Metrics
	now      func() time.Time
}

// New creates a new server instance
func New(cfg *config.Config, logger *zap.Logger, upstream Upstream) (*Server, error) {
	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   gin.New(),
		upstream: upstream,
		safety:   translator.SafetyPolicy(cfg.Gemini.SafetyThreshold),
		metrics:  NewMetrics(prometheus.NewRegistry()),
		now:      time.Now,
	}

	// 设置中间件
	s.setupMiddleware()

	// 设置路由
	s.setupRoutes()

	return s, nil
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.CustomRecovery(s.recoveryHandler))

	s.router.Use(requestIDMiddleware())

	// Logger middleware
	s.router.Use(s.loggerMiddleware())

	if s.cfg.Metrics.Enabled {
		s.router.Use(s.metrics.Middleware())
	}

	// CORS middleware
	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	// 根路径返回简单状态
	s.router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// 健康检查
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ping", s.ping)

	if s.cfg.Metrics.Enabled {
		s.router.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	// OpenAI兼容 API
	api := s.router.Group("/v1")
	{
		api.POST("/chat/completions", s.chatCompletions)
		api.GET("/models", s.listModels)
	}

	s.router.NoRoute(func(c *gin.Context) {
		writeError(c, 404, "invalid_request_error", "not_found", "Unknown route: "+c.Request.Method+" "+c.Request.URL.Path)
	})
}

// 基础handlers
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}

func (s *Server) recoveryHandler(c *gin.Context, recovered any) {
	s.logger.Error("Panic while handling request",
		zap.Any("panic", recovered),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(requestIDKey)))
	writeError(c, 500, "server_error", "internal_error", "Internal server error")
	c.Abort()
}
