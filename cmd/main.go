package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sonoff_server/internal/config"
	"sonoff_server/internal/gateway"
	"sonoff_server/internal/handlers"
	"sonoff_server/internal/logger"
	"sonoff_server/internal/repository"
	"sonoff_server/internal/server"
	"sonoff_server/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// load .env, configs/config.yml and environment
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel, logger.ConsoleFormat).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(cfg.LogLevel, cfg.LogFormat)

	// open DB
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DBPath)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(db)
	registry := gateway.NewRegistry()
	gw := gateway.New(registry, repos.DeviceRepo, repos.EventRepo, log, gateway.Options{
		CommandTimeout: cfg.SyncTimeout,
		PingInterval:   cfg.PingInterval,
		Policy:         gateway.PolicyFor(cfg.MultiUser),
	})
	services := service.NewService(repos, registry, service.Options{
		SigningKey:         cfg.SigningKey,
		TokenTTL:           cfg.TokenTTL,
		TimerEnabledOnWire: cfg.TimerEnabledOnWire,
		Log:                log,
	})
	apiHandler := handlers.NewHandler(services, gw, handlers.Options{
		MultiUser: cfg.MultiUser,
		WSPath:    cfg.WSPath,
		ServerIP:  cfg.ServerIP,
		WSPort:    cfg.WSPort(),
	}, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TimerSweepInterval > 0 {
		go service.NewTimerSweeper(repos.DeviceRepo, log).Run(ctx, cfg.TimerSweepInterval)
	}

	srv := &server.Server{}
	runHTTPServer(srv, cfg, apiHandler, log)

	waitForShutdown(cancel, srv, gw, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, cfg *config.Config, handler *handlers.Handler, log *logger.Logger) {
	routes := handler.InitRoutes()
	go func() {
		log.Infow("server_starting", "port", cfg.Port, "tls", cfg.TLSEnabled(),
			"multi_user", cfg.MultiUser, "ws_path", cfg.WSPath)

		var err error
		if cfg.TLSEnabled() {
			err = srv.RunTLS(cfg.Port, cfg.TLSCertFile, cfg.TLSKeyFile, routes)
		} else {
			err = srv.Run(cfg.Port, routes)
		}
		if err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, gw *gateway.Gateway, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// device connections are hijacked, http.Server does not see them
	if err := gw.Shutdown(ctx); err != nil {
		log.Errorw("device connections not drained", "err", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
