package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kandev/taskboard/internal/auth"
	boardhandlers "github.com/kandev/taskboard/internal/board/handlers"
	boardservice "github.com/kandev/taskboard/internal/board/service"
	"github.com/kandev/taskboard/internal/common/httpmw"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/common/tracing"
	"github.com/kandev/taskboard/internal/events"
	gateways "github.com/kandev/taskboard/internal/gateway/websocket"
	"github.com/kandev/taskboard/internal/persistence"
	"github.com/kandev/taskboard/internal/session"
	usercontroller "github.com/kandev/taskboard/internal/user/controller"
	userhandlers "github.com/kandev/taskboard/internal/user/handlers"
	userservice "github.com/kandev/taskboard/internal/user/service"
)

const (
	serverName      = "taskboard"
	shutdownTimeout = 30 * time.Second
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	cfg, log, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting taskboard", zap.String("version", Version), zap.String("addr", cfg.Server.Addr()))

	repos, closeRepos, err := persistence.Provide(cfg, log)
	if err != nil {
		return err
	}
	defer closeWith(log, "repositories", closeRepos)

	provided, closeBus, err := events.Provide(cfg, log)
	if err != nil {
		return err
	}
	defer closeWith(log, "event bus", closeBus)

	sessions, closeSessions, err := session.Provide(cfg, log)
	if err != nil {
		return err
	}
	defer closeWith(log, "session store", closeSessions)

	users := userservice.NewService(repos.Users, provided.Bus, log)
	authManager := auth.NewManager(users, sessions,
		auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenDurationTime()), log)
	boards := boardservice.NewService(repos.Board, provided.Bus, sessions,
		boardservice.ConfigFrom(cfg.WriteQueue), log)

	gateway, err := gateways.Provide(ctx, cfg.Server.CORSOrigins, provided.Bus, log)
	if err != nil {
		return err
	}

	router := newRouter(log)
	requireSession := auth.RequireSession(authManager)
	gateway.SetupRoutes(router, authManager)
	boardhandlers.RegisterRoutes(router, requireSession, gateway.Dispatcher, boards, log)
	userCtrl := usercontroller.NewController(users, authManager, boards, gateway.Hub, log)
	userhandlers.RegisterRoutes(router, requireSession, gateway.Dispatcher, userCtrl, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      corsHandler(cfg.Server.CORSOrigins)(router),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := boards.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("board shutdown: %w", err))
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to flush traces", zap.Error(err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with errors", zap.Error(err))
		return err
	}
	log.Info("Server stopped")
	return nil
}

func newRouter(log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		httpmw.RequestID(),
		httpmw.OtelTracing(serverName),
		httpmw.RequestLogger(log, serverName),
	)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serverName, "version": Version})
	})
	router.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serverName, "version": Version})
	})
	return router
}

func closeWith(log *logger.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("Failed to close "+what, zap.Error(err))
	}
}

