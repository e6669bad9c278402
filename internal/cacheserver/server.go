package cacheserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/logging"
)

// Server exposes a Store over HTTP
type Server struct {
	store  *Store
	logger *zap.Logger
	engine *gin.Engine
}

type setRequest struct {
	Key      string          `json:"key"`
	Data     json.RawMessage `json:"data"`
	Language string          `json:"language"`
}

// NewServer builds the router:
//
//	GET  /cache?key=  -> 200 {found:true,data} | 404 {found:false}
//	POST /cache       {key,data,language} -> 200 {success:true}
//	GET  /health
func NewServer(store *Store, logger *zap.Logger) *Server {
	s := &Server{store: store, logger: logging.Or(logger)}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), gzip.Gzip(gzip.BestSpeed))
	r.GET("/health", s.health)
	r.GET("/cache", s.get)
	r.POST("/cache", s.set)
	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, purging expired entries hourly
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.purgeLoop(ctx, time.Hour)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("cacheserver: listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) purgeLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.Purge(ctx)
			if err != nil {
				s.logger.Warn("cacheserver: purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("cacheserver: purged expired entries", zap.Int64("count", n))
			}
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)

		c.Next()

		s.logger.Debug("cacheserver: request",
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	n, err := s.store.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "entries": n})
}

func (s *Server) get(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'key' query parameter"})
		return
	}

	entry, ok, err := s.store.Get(c.Request.Context(), key)
	if err != nil {
		s.logger.Warn("cacheserver: get failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "data": entry.Data})
}

func (s *Server) set(c *gin.Context) {
	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Key == "" {
		req.Key = c.Query("key")
	}
	if req.Key == "" || len(req.Data) == 0 || string(req.Data) == "null" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'key' or 'data'"})
		return
	}
	if !json.Valid(req.Data) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'data' is not valid JSON"})
		return
	}

	if err := s.store.Put(c.Request.Context(), req.Key, req.Language, req.Data); err != nil {
		s.logger.Warn("cacheserver: put failed", zap.String("key", req.Key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
