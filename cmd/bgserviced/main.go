// Package main is the entry point for the bgservice daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"bgservice/internal/config"
	"bgservice/internal/logger"
	"bgservice/internal/service"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const (
	serviceName        = "bgservice"
	startupErrorLogDir = "log/bgservice"
)

func main() {
	var (
		configPath  = flag.String("config", "conf/bgservice/Service.json", "Path to service configuration file")
		loggingPath = flag.String("logging", "conf/bgservice/Logging.json", "Path to logging configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("bgserviced %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// An absolute config path means we were started by a service manager
	// with an arbitrary working directory; the install root is three levels
	// above the config file (<root>/conf/bgservice/Service.json).
	if filepath.IsAbs(*configPath) {
		basePath := filepath.Dir(filepath.Dir(filepath.Dir(*configPath)))
		if err := os.Chdir(basePath); err != nil {
			fail(fmt.Errorf("failed to chdir to %s: %w", basePath, err))
		}
	}

	if service.NewService(serviceName, nil).IsService() {
		logger.SetServiceMode(true)
	}

	cfg, lc, err := config.LoadSplit(*configPath, *loggingPath)
	if err != nil {
		fail(err)
	}
	if err := logger.Init(*lc); err != nil {
		fail(fmt.Errorf("failed to initialize logger: %w", err))
	}
	service.ClearStartupErrorFile(startupErrorLogDir)

	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("service", cfg.Name).
		Str("config", *configPath).
		Str("logging", *loggingPath).
		Msg("Starting bgserviced")

	d := newDaemon(cfg, *configPath, *loggingPath)
	svc := service.NewService(serviceName, d.run, service.WithReload(d.reload))
	if err := svc.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Service exited with error")
	}

	log.Info().Msg("bgserviced stopped")
}

func fail(err error) {
	service.ReportStartupError(serviceName, err)
	service.WriteStartupErrorFile(startupErrorLogDir, serviceName, err)
	fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
	os.Exit(1)
}
