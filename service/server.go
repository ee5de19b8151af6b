package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/rankproxy/abtest"
	"github.com/rushteam/rankproxy/core"
	"github.com/rushteam/rankproxy/reorder"
)

// Server 暴露重排服务的 HTTP 接口：
//
//	POST /v0/reorder     重排候选集（本实例的排序变体）
//	POST /v0/ab/reorder  按客户端分流到变体端点并透传（router 配置时才注册）
//	GET  /health         健康检查
//	GET  /metrics        Prometheus 指标
type Server struct {
	usecase *reorder.Usecase
	router  *abtest.Router
	engine  *gin.Engine
	logger  zerolog.Logger
}

// ServerOption 配置 Server
type ServerOption func(*Server)

// WithABRouter 注册 AB 分流接口（可选能力）
func WithABRouter(router *abtest.Router) ServerOption {
	return func(s *Server) {
		s.router = router
	}
}

// WithServerLogger 设置日志
func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer 创建 HTTP 服务。请求体中的未知字段一律拒绝，
// 避免拼错的过滤字段被静默忽略后污染缓存键。
func NewServer(usecase *reorder.Usecase, opts ...ServerOption) *Server {
	gin.EnableJsonDecoderDisallowUnknownFields()

	s := &Server{
		usecase: usecase,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), metricsMiddleware())

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.POST("/v0/reorder", s.handleReorder)
	if s.router != nil {
		engine.POST("/v0/ab/reorder", s.handleABReorder)
	}

	s.engine = engine
	return s
}

// Handler 返回底层 http.Handler，供 http.Server 与测试使用。
func (s *Server) Handler() http.Handler {
	return s.engine
}

type reorderRequest struct {
	IDs                      []string `json:"ids" binding:"required,min=1,dive,required"`
	QueryPhrases             []string `json:"query_phrases"`
	QueryAnimalCategoryID    *int     `json:"query_animal_category_id"`
	QueryAnimalSubcategoryID *int     `json:"query_animal_subcategory_id"`
}

type reorderResponse struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"health": "ok"})
}

func (s *Server) handleReorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.usecase.Reorder(c.Request.Context(), &core.RankRequest{
		IDs:                      req.IDs,
		QueryPhrases:             req.QueryPhrases,
		QueryAnimalCategoryID:    req.QueryAnimalCategoryID,
		QueryAnimalSubcategoryID: req.QueryAnimalSubcategoryID,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("reorder failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reorderResponse{IDs: resp.IDs})
}

type abReorderRequest struct {
	UserID  string          `json:"user_id"`
	Request json.RawMessage `json:"request" binding:"required"`
}

type abReorderResponse struct {
	Endpoint string          `json:"endpoint"`
	Response json.RawMessage `json:"response"`
}

// handleABReorder 按 user_id 解析变体端点并透传内层请求，回程包一层信封。
// 变体返回错误状态时不合成兜底值，以 502 透传错误，由调用方决定降级策略。
func (s *Server) handleABReorder(c *gin.Context) {
	var req abReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.router.Route(c.Request.Context(), req.UserID, req.Request)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("ab route failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		// 变体的原始错误体一并透传，便于调用方检视
		resp := gin.H{
			"error":    "variant endpoint returned error status",
			"endpoint": result.Endpoint,
			"status":   result.StatusCode,
		}
		if json.Valid(result.Body) {
			resp["response"] = json.RawMessage(result.Body)
		}
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	if !json.Valid(result.Body) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "variant endpoint returned non-json body",
			"endpoint": result.Endpoint,
		})
		return
	}
	c.JSON(http.StatusOK, abReorderResponse{
		Endpoint: result.Endpoint,
		Response: result.Body,
	})
}

// statusFor 把领域错误映射到 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case core.IsInvalidInput(err):
		return http.StatusBadRequest
	case core.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case core.IsEnvelopeMismatch(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Run 启动 HTTP 服务并阻塞直到 ctx 取消，随后优雅关停。
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
