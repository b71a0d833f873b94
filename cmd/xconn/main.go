// Command xconn keeps messaging accounts connected.
//
// It reads the accounts from a settings file, runs one connection attempt
// task per account and retries with backoff. Accounts whose credentials
// are rejected are disabled until they are enabled again.
//
// Usage:
//
//	xconn [flags]
//
// Flags:
//
//	-config string      Settings file path (default "xconn.yaml")
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-metrics string     Serve Prometheus metrics on this address (e.g. ":9102")
//	-interactive        Start the command console
//
// Passwords are read from the environment variable named by each
// account's password_env. Settings may be overridden with XCONN_*
// variables, see package config.
//
// Examples:
//
//	# Run in the foreground with a console
//	ALICE_PASSWORD=secret xconn -config xconn.yaml -interactive
//
//	# Run as a daemon with metrics
//	xconn -config /etc/xconn/xconn.yaml -metrics :9102
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xconn/xconn-go/cmd/xconn/interactive"
	"github.com/xconn/xconn-go/pkg/config"
	xlog "github.com/xconn/xconn-go/pkg/log"
	"github.com/xconn/xconn-go/pkg/metrics"
	"github.com/xconn/xconn-go/pkg/service"
)

var (
	configFile  = flag.String("config", "xconn.yaml", "Settings file path")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address")
	interact    = flag.Bool("interactive", false, "Start the command console")
)

func main() {
	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(level); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(level slog.Level) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *interactive.Console
	var out io.Writer = os.Stderr
	if *interact {
		c, err := interactive.New()
		if err != nil {
			return err
		}
		console = c
		out = c.Stderr()
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	live, err := config.NewLive(*configFile, logger)
	if err != nil {
		return err
	}

	svcConfig := service.Config{Live: live, Logger: logger}
	if level <= slog.LevelDebug {
		svcConfig.EventLog = xlog.NewSlogAdapter(logger)
	}

	var metricsServer *metrics.Server
	if *metricsAddr != "" {
		registry := metrics.NewRegistry()
		svcConfig.Registerer = prometheus.WrapRegistererWith(prometheus.Labels{"instance": hostname()}, registry)
		metricsServer = metrics.NewServer(*metricsAddr, registry, logger)
		if err := metricsServer.Start(); err != nil {
			return err
		}
	}

	svc, err := service.New(svcConfig)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if console != nil {
		console.Run(ctx, cancel, svc)
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down")
	err = svc.Stop()
	if metricsServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if serr := metricsServer.Stop(shutdownCtx); serr != nil {
			logger.Warn("metrics server shutdown", "error", serr)
		}
	}
	return err
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
