// Package httpserver exposes the booking engine over HTTP for the voice agent
// and staff tooling.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oakandember/tablebook/internal/escalation"
	"github.com/oakandember/tablebook/internal/health"
	"github.com/oakandember/tablebook/pkg/booking"
)

// Dependencies carries the wired services the handlers call into.
type Dependencies struct {
	Bookings  *booking.Service
	Callbacks *escalation.Service
	Health    *health.Runner
	Monitor   *health.Monitor
	Calls     health.CallRecorder
	Logger    *zap.Logger
}

// Run boots the HTTP server and blocks until the context is cancelled.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		cfg:       cfg,
		logger:    logger,
		bookings:  deps.Bookings,
		callbacks: deps.Callbacks,
		health:    deps.Health,
		monitor:   deps.Monitor,
		calls:     deps.Calls,
	}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("booking api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/availability", handler.handleCheckAvailability)
	api.POST("/bookings", handler.handleCreateBooking)
	api.PATCH("/bookings/:id", handler.handleUpdateBooking)
	api.POST("/bookings/:id/cancel", handler.handleCancelBooking)
	api.POST("/bookings/:id/status", handler.handleAdvanceStatus)
	api.GET("/callbacks", handler.handlePendingCallbacks)
	api.POST("/callbacks", handler.handleEnqueueCallback)
	api.POST("/callbacks/:id/start", handler.handleStartCallback)
	api.POST("/callbacks/:id/resolve", handler.handleResolveCallback)
	api.POST("/calls", handler.handleCallRecord)
	api.GET("/restaurants/:id/health", handler.handleRestaurantHealth)

	return router
}
