// Package api serves the conductor over HTTP/JSON with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/config"
	"github.com/cory-johannsen/boxcars/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP API. It implements server.Service.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	svc    *conductor.Service
	logger *zap.Logger
}

// NewServer builds the router and the HTTP server.
//
// Precondition: svc and logger must be non-nil; cfg must be valid.
// Postcondition: Returns a Server ready for Start.
func NewServer(cfg config.HTTPConfig, svc *conductor.Service, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.AccessLog(logger))

	s := &Server{
		engine: engine,
		svc:    svc,
		logger: logger,
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.GET("/state", s.getState)
	api.POST("/game", s.newGame)
	api.PUT("/game/map", s.switchMap)
	api.GET("/export", s.export)
	api.POST("/import", s.importGame)
	api.GET("/saves", s.listSaves)
	api.DELETE("/saves/:key", s.removeSave)

	api.GET("/regions", s.regions)
	api.GET("/cities", s.cities)
	api.GET("/payouts", s.payout)

	players := api.Group("/players")
	players.GET("", s.summaries)
	players.POST("", s.addPlayer)
	players.GET("/:id", s.getPlayer)
	players.PATCH("/:id", s.updatePlayer)
	players.DELETE("/:id", s.removePlayer)
	players.POST("/:id/move", s.movePlayer)
	players.POST("/:id/reorder", s.reorderPlayer)
	players.POST("/:id/stops", s.addStop)
	players.PATCH("/:id/stops/:index", s.patchStop)
	players.DELETE("/:id/stops/:index", s.deleteStop)
	players.POST("/:id/stops/:index/move", s.moveStop)
	players.GET("/:id/candidates", s.candidates)
	players.POST("/:id/rolls", s.startRoll)

	prompts := api.Group("/prompts")
	prompts.GET("", s.listPrompts)
	prompts.GET("/:id", s.getPrompt)
	prompts.POST("/:id/answer", s.answerPrompt)
	prompts.DELETE("/:id", s.cancelPrompt)

	api.GET("/stats", s.stats)
	api.GET("/stats.csv", s.statsCSV)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens until Stop is called.
//
// Postcondition: Returns nil after a graceful Stop.
func (s *Server) Start() error {
	s.logger.Info("http api listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown", zap.Error(err))
	}
}
