package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Digital-Creators-Team/prize-wheel-module/auth"
	"github.com/Digital-Creators-Team/prize-wheel-module/config"
	"github.com/Digital-Creators-Team/prize-wheel-module/middleware"
	"github.com/Digital-Creators-Team/prize-wheel-module/pkg/feed"
	"github.com/Digital-Creators-Team/prize-wheel-module/pkg/providers"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// readRouteTimeout bounds the read-only wheel routes
const readRouteTimeout = 10 * time.Second

// App represents the wheel service application
type App struct {
	engine       *gin.Engine
	config       *config.Config
	logger       zerolog.Logger
	httpServer   *http.Server
	onShutdown   []func()
	spinService  SpinService
	wheelHandler *WheelHandler
	feedHandler  *FeedHandler
	feedService  *feed.Service
	wallet       providers.WalletProvider
	publisher    providers.SpinPublisher
}

// Options holds server configuration options
type Options struct {
	Config *config.Config
	Logger zerolog.Logger
}

// Router is an alias for gin.Engine for convenience
type Router = gin.Engine

// New creates a new wheel service application
func New(opts Options) *App {
	// Configure decimal.Decimal to marshal as JSON number instead of string
	// WARNING: This may cause precision loss for decimals with many digits when
	// unmarshaled by clients using IEEE 754 double-precision (e.g., JavaScript)
	decimal.MarshalJSONWithoutQuotes = true

	// Set Gin mode
	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	app := &App{
		engine: engine,
		config: opts.Config,
		logger: opts.Logger,
	}

	// Budget feed service (buffered + broadcast interval)
	app.feedService = feed.NewService(feed.ServiceConfig{
		FlushInterval: 2 * time.Second,
	}, opts.Logger)

	return app
}

// SetWalletProvider sets the wallet provider for prize crediting
func (a *App) SetWalletProvider(provider providers.WalletProvider) {
	a.wallet = provider
}

// SetSpinPublisher sets the publisher for committed spin events
func (a *App) SetSpinPublisher(publisher providers.SpinPublisher) {
	a.publisher = publisher
}

// RegisterSpinService installs the spin orchestration service and wires
// the wheel handlers. Call after the providers are set.
func (a *App) RegisterSpinService(svc SpinService) {
	a.spinService = svc
	a.wheelHandler = NewWheelHandler(a)
	a.feedHandler = NewFeedHandler(a, a.feedService)
	a.logger.Info().Msg("Spin service registered")
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.engine.Use(middleware.Recovery(a.logger))

	// Trace ID middleware
	a.engine.Use(middleware.TraceID())

	// Logging middleware
	a.engine.Use(middleware.Logging(a.logger))

	// CORS middleware if enabled
	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// UseMiddleware adds a custom middleware
func (a *App) UseMiddleware(m gin.HandlerFunc) {
	a.engine.Use(m)
}

// GetSpinService returns the registered spin service
func (a *App) GetSpinService() SpinService {
	return a.spinService
}

// GetFeedService returns the budget feed service
func (a *App) GetFeedService() *feed.Service {
	return a.feedService
}

// GetWalletProvider returns the wallet provider
func (a *App) GetWalletProvider() providers.WalletProvider {
	return a.wallet
}

// GetSpinPublisher returns the spin event publisher
func (a *App) GetSpinPublisher() providers.SpinPublisher {
	return a.publisher
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   a.config.Environment,
	})
}

// RegisterWheelRoutes registers the wheel API routes
//
// Flow: HTTP Request -> wheelRoutes -> WheelHandler -> SpinService -> wheel engine
//
// Routes registered:
//   - POST /api/wheel/spin     -> WheelHandler.Spin
//   - GET  /api/wheel/state    -> WheelHandler.GetState
//   - GET  /api/wheel/history  -> WheelHandler.GetHistory
//   - GET  /api/wheel/feed     -> FeedHandler.StreamUpdates (SSE)
//   - GET  /api/wheel/feed/ws  -> FeedHandler.StreamUpdatesWebSocket (WebSocket)
func (a *App) RegisterWheelRoutes() {
	if a.spinService == nil {
		a.logger.Fatal().Msg("No spin service registered. Call RegisterSpinService() first.")
		return
	}

	wheelRoutes := a.engine.Group("/api/wheel")
	wheelRoutes.Use(auth.JWTMiddleware(a.config.JWT.Secret, a.logger)) // JWT middleware sets user info
	{
		wheelRoutes.POST("/spin", a.wheelHandler.Spin)

		// read-only routes get a request timeout; the spin route is
		// bounded by the store's own timeouts and the feed routes are
		// long-lived streams
		readTimeout := middleware.Timeout(readRouteTimeout)
		wheelRoutes.GET("/state", readTimeout, a.wheelHandler.GetState)
		wheelRoutes.GET("/history", readTimeout, a.wheelHandler.GetHistory)

		// Live budget feed (SSE and WebSocket streams)
		wheelRoutes.GET("/feed", a.feedHandler.StreamUpdates)
		wheelRoutes.GET("/feed/ws", a.feedHandler.StreamUpdatesWebSocket)
	}

	a.logger.Info().Msg("Wheel routes registered: /api/wheel")
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// Group creates a route group
func (a *App) Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return a.engine.Group(path, handlers...)
}

// AuthGroup creates a route group with JWT authentication
func (a *App) AuthGroup(path string) *gin.RouterGroup {
	return a.engine.Group(path, auth.JWTMiddleware(a.config.JWT.Secret, a.logger))
}

// RegisterRoutes registers custom routes using a callback
func (a *App) RegisterRoutes(fn func(*gin.Engine)) {
	fn(a.engine)
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Run starts the HTTP server
func (a *App) Run() error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	return a.waitForShutdown()
}

// RunWithContext starts the HTTP server with context
func (a *App) RunWithContext(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return a.shutdown()
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Call registered shutdown handlers
	for _, fn := range a.onShutdown {
		fn()
	}

	// Stop the feed flusher so stream clients see end-of-stream
	if a.feedService != nil {
		a.feedService.Stop()
	}

	// Shutdown HTTP server
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}

// WheelHandler returns the built-in wheel handler
func (a *App) WheelHandler() *WheelHandler {
	return a.wheelHandler
}
