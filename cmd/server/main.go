package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"trends-go/internal/app"
	"trends-go/internal/config"
	"trends-go/internal/handler"
	"trends-go/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

type Application struct {
	configPath string
	debug      bool
}

func main() {
	application := &Application{}

	flag.StringVar(&application.configPath, "config", os.Getenv("TRENDS_CONFIG"), "Configuration file path (env: TRENDS_CONFIG)")
	flag.BoolVar(&application.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if err := application.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func (a *Application) Run() error {
	cfg, err := config.NewManager().Load(a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Logger.Level = "debug"
	}
	serverLog := logger.Init(cfg.Logger).WithField("component", "server")

	services, err := app.New(cfg)
	if err != nil {
		return err
	}
	if err := services.Start(); err != nil {
		_ = services.Shutdown(context.Background())
		return err
	}

	ctrl := handler.NewController(services.Tasks, services.Compare, services.Runs, services.Pool)
	server := handler.NewApp(ctrl)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	listenErr := make(chan error, 1)
	go func() {
		serverLog.WithField("addr", addr).Info("Starting trends-go server")
		listenErr <- server.Listen(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		serverLog.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-listenErr:
		if err != nil {
			runErr = fmt.Errorf("server stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		serverLog.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	if err := services.Shutdown(shutdownCtx); err != nil {
		serverLog.WithError(err).Warn("Service shutdown incomplete")
	}

	serverLog.Info("Server stopped")
	return runErr
}
