package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wedding-chat/config"
	"wedding-chat/internal/handler"
	"wedding-chat/internal/middleware"
	"wedding-chat/internal/redis"
	"wedding-chat/internal/services"
	"wedding-chat/internal/transport/httpdto"
	"wedding-chat/internal/websocket"
	"wedding-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	onShutdown []func()
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	WebSocket     *websocket.Handler
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

type RouteOptions struct {
	Auth *services.AuthService
	// Limiter is optional; without it message sends are not throttled.
	Limiter  *redis.RateLimiter
	Health   HealthFunc
	Registry *websocket.Registry
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// OnShutdown registers fn to run after the HTTP server has stopped.
func (s *Server) OnShutdown(fn func()) {
	s.onShutdown = append(s.onShutdown, fn)
}

func (s *Server) SetupRoutes(handlers *Handlers, opts RouteOptions) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), httpdto.CodeUnhealthy))
				return
			}
		}
		status := gin.H{"status": "healthy"}
		if opts.Registry != nil {
			status["connections"] = opts.Registry.ConnectionCount()
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
	})

	s.engine.GET("/ws", handlers.WebSocket.Connect)

	sendLimit := func(c *gin.Context) { c.Next() }
	if opts.Limiter != nil {
		sendLimit = middleware.MessageRateLimitMiddleware(opts.Limiter)
	}

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(opts.Auth))
	conversations := v1.Group("/conversations")
	{
		conversations.POST("", handlers.Conversations.Create)
		conversations.GET("", handlers.Conversations.List)
		conversations.GET("/:id", handlers.Conversations.GetByID)
		conversations.DELETE("/:id", handlers.Conversations.Delete)
		conversations.GET("/:id/messages", handlers.Messages.List)
		conversations.POST("/:id/messages", sendLimit, handlers.Messages.Send)
		conversations.POST("/:id/read", handlers.Messages.MarkRead)
	}
	if opts.Limiter != nil {
		v1.GET("/rate-limit/messages", middleware.MessageRateLimitStatus(opts.Limiter))
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	for _, fn := range s.onShutdown {
		fn()
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
