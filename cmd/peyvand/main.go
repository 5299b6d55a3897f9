package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/auth"
	"github.com/4xmen/peyvand/internal/handlers"
	"github.com/4xmen/peyvand/internal/metrics"
	"github.com/4xmen/peyvand/internal/observ"
	"github.com/4xmen/peyvand/internal/persist"
	"github.com/4xmen/peyvand/internal/push"
	"github.com/4xmen/peyvand/internal/service"
	"github.com/4xmen/peyvand/internal/store/backend"
	"github.com/4xmen/peyvand/internal/ws"
	"github.com/4xmen/peyvand/pkg/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := runServer(cfg); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runCommand(cfg *config.Config, args []string) error {
	command := args[0]

	switch command {
	case "serve":
		return runServer(cfg)
	case "status":
		return runStatus(cfg, os.Stdout, args[1:])
	case "migrate":
		return runMigrate(cfg, os.Stdout, args[1:])
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  peyvand            Start the relay server")
	fmt.Fprintln(out, "  peyvand serve      Start the relay server")
	fmt.Fprintln(out, "  peyvand status     Show store statistics")
	fmt.Fprintln(out, "  peyvand status --json")
	fmt.Fprintln(out, "  peyvand migrate    Apply relational schema migrations")
}

func runServer(cfg *config.Config) error {
	logger, err := observ.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := backend.Open(ctx, cfg, logger)

	registry := ws.NewRegistry(logger)
	svc := service.New(st, registry, cfg.StoreTimeout)
	queue := persist.New(cfg.PersistQueueSize, cfg.StoreTimeout, logger)

	notifier := push.NewNotifier(st, svc.Clock, push.Options{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
	}, logger)

	// a typed nil would make the relay's nil check pass
	var relayNotifier ws.Notifier
	if notifier != nil {
		relayNotifier = notifier
	} else {
		logger.Info("VAPID keys not set, web push disabled")
	}

	relay := ws.NewRelay(registry, svc, queue, relayNotifier, logger)
	wsHandler := ws.NewHandler(relay, cfg.CORSOrigins, cfg.WSPingInterval, cfg.WSReadTimeout, logger)

	authSvc := auth.New(svc.Users, cfg.JWTSecret)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(handlers.ServerErrorLogger(logger))
	router.Use(gin.Logger())
	router.Use(handlers.PanicRecovery(logger))
	router.Use(handlers.CORS(cfg.CORSOrigins))

	handlers.Routes{
		Auth:            handlers.NewAuthHandler(authSvc, logger),
		Messages:        handlers.NewMessageHandler(svc, registry, logger),
		Friends:         handlers.NewFriendHandler(svc.Friends, logger),
		Push:            handlers.NewPushHandler(notifier, logger),
		WebRTC:          handlers.NewWebRTCConfig(cfg.StunServers, cfg.TurnServer, cfg.TurnUsername, cfg.TurnPassword),
		WebSocket:       wsHandler.HandleWebSocket,
		Metrics:         metrics.Handler(),
		LoginLimiter:    limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 5}),
		RegisterLimiter: limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 2}),
	}.Register(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("backend", st.Backend()),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	// pending writes are flushed before the store goes away
	if err := queue.Close(shutdownCtx); err != nil {
		logger.Error("persistence queue did not drain", zap.Error(err))
	}
	notifier.Wait()
	if err := st.Close(shutdownCtx); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	return nil
}
