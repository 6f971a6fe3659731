package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskstream/taskstream/internal/api"
	"github.com/taskstream/taskstream/internal/auth"
	"github.com/taskstream/taskstream/internal/config"
	"github.com/taskstream/taskstream/internal/realtime"
	"github.com/taskstream/taskstream/internal/stats"
	"github.com/taskstream/taskstream/internal/store"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "taskstream",
		Short:         "Real-time collaboration server for the task management app",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(v)
		},
	}

	flags := rootCmd.Flags()
	flags.String("addr", "localhost:8000", "server address")
	flags.String("dsn", "", "database connection string")
	flags.String("signing-key", "", "base64 encoded JWT signing key")
	flags.String("publish-token", "", "shared token for the event publish hook")
	flags.StringSlice("allowed-origins", nil, "allowed origins for CORS")
	flags.Duration("heartbeat-interval", 15*time.Second, "heartbeat scan period")
	flags.Duration("heartbeat-timeout", 60*time.Second, "session eviction timeout")
	flags.Duration("presence-grace", 5*time.Second, "offline debounce window")
	flags.Int("send-queue-size", 256, "per-session outbound queue capacity")
	v.BindPFlags(flags)

	return rootCmd
}

func run(v *viper.Viper) error {
	logger := log.New(os.Stderr, "[taskstream] ", log.LstdFlags)

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	ws, err := store.NewPgWorkspaceStore(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)

	rooms := realtime.NewRoomDirectory(logger, statsUpdater)
	registry, err := realtime.NewSessionRegistry(logger, statsUpdater, rooms, cfg.SendQueueSize)
	if err != nil {
		return err
	}
	dispatcher := realtime.NewDispatcher(logger, statsUpdater, rooms)
	presence := realtime.NewPresenceTracker(logger, ws, dispatcher, cfg.PresenceGrace)
	registry.SetPresenceListener(presence)

	gw := realtime.NewGateway(
		logger,
		auth.NewJWTAuthenticator(cfg.SigningKey),
		ws,
		registry,
		rooms,
		dispatcher,
		presence,
		cfg.HandshakeTimeout,
		cfg.HeartbeatTimeout,
	)
	monitor := realtime.NewHeartbeatMonitor(logger, gw, cfg.HeartbeatInterval, cfg.HeartbeatTimeout)

	srv := api.NewApp(mux, logger, gw, dispatcher, ws, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go monitor.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	monitor.Stop()

	logger.Println("disconnecting sessions...")
	if err := gw.Shutdown(shutDownCtx); err != nil {
		return err
	}

	logger.Println("shutdown complete")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
