package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agocontrol/security/pkg/alarm"
	"github.com/agocontrol/security/pkg/bus"
	"github.com/agocontrol/security/pkg/config"
	"github.com/agocontrol/security/pkg/controller"
	"github.com/agocontrol/security/pkg/frame"
	"github.com/agocontrol/security/pkg/gateway"
	"github.com/agocontrol/security/pkg/inventory"
	"github.com/agocontrol/security/pkg/logger"
	"github.com/agocontrol/security/pkg/securitymap"
	"github.com/agocontrol/security/pkg/supervisor"
)

func main() {
	fs := flag.NewFlagSet("securityd", flag.ExitOnError)
	logFlags := logger.RegisterFlags(fs)
	configPath := fs.String("config", config.DefaultConfigPath, "path to the YAML configuration file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Security and video subsystem controller\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		logger.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logger.SetDefault(log)

	log.Info("starting securityd", "log_config", logFlags.String())

	koanfCfg, err := config.NewKoanfConfig(config.WithYAMLFile(*configPath))
	if err != nil {
		log.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	cfg, err := koanfCfg.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "state", cfg.Paths.State, "recordings", cfg.Paths.Recordings)

	if err := os.MkdirAll(cfg.Paths.State, 0750); err != nil {
		log.Error("failed to create state directory", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Paths.Recordings, 0750); err != nil {
		log.Error("failed to create recordings directory", "error", err)
		os.Exit(1)
	}

	store, err := securitymap.Load(filepath.Join(cfg.Paths.State, "securitymap.json"))
	if err != nil {
		log.Error("failed to load securitymap", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	conn := bus.NewMemory()
	defer conn.Close()

	queue := gateway.NewQueue(600, log.Logger)
	queue.Start()
	defer queue.Stop()

	dispatcher := gateway.NewDispatcher(conn, queue, log.Logger)
	dispatcher.SetContacts(gateway.Contacts{Email: cfg.System.Email, Phone: cfg.System.Phone})

	inv := inventory.NewFake()
	startGatewayRefreshLoop(ctx, dispatcher, inv, cfg.Gateways.RefreshInterval, log.Logger)

	engine := alarm.NewEngine(store, conn, dispatcher, cfg.Alarm.CountdownTick, log.Logger)
	if err := conn.Subscribe("event.device.statechanged", engine.HandleEvent); err != nil {
		log.Error("failed to subscribe alarm engine", "error", err)
		os.Exit(1)
	}
	if err := conn.Subscribe("event.security.sensortriggered", engine.HandleEvent); err != nil {
		log.Error("failed to subscribe alarm engine", "error", err)
		os.Exit(1)
	}

	registry := frame.NewRegistry(func(uri string) frame.Source {
		return frame.NewSynthetic(1280, 720, 15)
	}, log.Logger)
	defer registry.StopAll()

	super := supervisor.New(store, registry, conn, cfg.Paths.Recordings, log.Logger)

	ctrl := controller.New(store, engine, super, cfg, cfg.Paths.Recordings, log.Logger)
	if err := ctrl.Register(conn); err != nil {
		log.Error("failed to register security controller", "error", err)
		os.Exit(1)
	}

	httpServer := controller.NewHTTPServer(ctrl, cfg.Paths.Recordings, log.Logger)
	if err := httpServer.Start(":8080"); err != nil {
		log.Error("failed to start diagnostic HTTP server", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := httpServer.Stop(stopCtx); err != nil {
			log.Error("failed to stop HTTP server", "error", err)
		}
	}()

	super.LaunchAll()
	defer super.StopAll()

	log.Info("securityd ready")
	<-ctx.Done()
	log.Info("shutting down")
}

func startGatewayRefreshLoop(ctx context.Context, dispatcher *gateway.Dispatcher, inv inventory.Client, interval time.Duration, log interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}) {
	refresh := func() {
		table, err := inventory.Gateways(inv)
		if err != nil {
			log.Warn("gateway table refresh failed", "error", err)
			return
		}
		dispatcher.SetTable(table)
		log.Info("gateway table refreshed", "count", len(table))
	}
	refresh()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()
}
