package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pborman/getopt"

	"github.com/dougsko/rigsync/pkg/config"
	"github.com/dougsko/rigsync/pkg/engine"
	"github.com/dougsko/rigsync/pkg/logging"
)

const Build = "development"

func main() {
	configPath := getopt.StringLong("config", 'c', "config.yaml", "Configuration file path")
	verbose := getopt.BoolLong("verbose", 'v', "Log at debug level")
	version := getopt.BoolLong("version", 'V', "Show version information")
	help := getopt.BoolLong("help", 'h', "Display help")
	getopt.Parse()

	if *help {
		getopt.Usage()
		os.Exit(0)
	}

	if *version {
		fmt.Printf("rigsyncd version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Info("main", fmt.Sprintf("rigsyncd version %s starting...", engine.Version))
	logging.Info("main", "configuration loaded", map[string]interface{}{
		"callsign": cfg.Station.Callsign,
		"model":    cfg.Radio.Model,
		"port":     cfg.Radio.Port,
		"web":      fmt.Sprintf("http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port),
	})

	daemon, err := NewRigsyncDaemon(cfg, *configPath)
	if err != nil {
		logging.Error("main", fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error("main", fmt.Sprintf("Failed to start daemon: %v", err))
		os.Exit(1)
	}

	logging.Info("main", "rigsyncd started successfully")

	<-sigChan
	logging.Info("main", "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Error("main", fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info("main", "rigsyncd stopped")
}
