package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/rigsync/pkg/config"
	"github.com/dougsko/rigsync/pkg/engine"
	"github.com/dougsko/rigsync/pkg/logging"
	"github.com/dougsko/rigsync/pkg/mqtt"
	"github.com/dougsko/rigsync/pkg/storage"
)

const component = "daemon"

// RigsyncDaemon wires the engine to its outer surfaces
type RigsyncDaemon struct {
	config     *config.Config
	configPath string
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	engine    *engine.Engine
	store     *storage.EventStore
	bridge    mqtt.Bridge
	webServer *http.Server
}

// NewRigsyncDaemon creates a new daemon instance
func NewRigsyncDaemon(cfg *config.Config, configPath string) (*RigsyncDaemon, error) {
	opts, err := engine.OptionsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine options: %w", err)
	}

	store, err := storage.NewEventStore(cfg.Storage.DatabasePath, cfg.Storage.MaxEvents, logging.GetGlobalLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	opts.History = store

	d, err := newDaemon(cfg, configPath, engine.New(opts), store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}

func newDaemon(cfg *config.Config, configPath string, eng *engine.Engine, store *storage.EventStore) (*RigsyncDaemon, error) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &RigsyncDaemon{
		config:     cfg,
		configPath: configPath,
		ctx:        ctx,
		cancel:     cancel,
		engine:     eng,
		store:      store,
	}

	if cfg.MQTT.Enabled {
		bridge, err := mqtt.New(cfg.MQTT, eng, logging.GetGlobalLogger())
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to setup mqtt: %w", err)
		}
		d.bridge = bridge
	}

	d.webServer = &http.Server{
		Addr:     fmt.Sprintf("%s:%d", cfg.Web.BindAddress, cfg.Web.Port),
		Handler:  d.setupRouter(),
		ErrorLog: logging.GetGlobalLogger().StdLog("http"),
	}
	return d, nil
}

// Start starts the daemon
func (d *RigsyncDaemon) Start() error {
	logging.Info(component, "starting rigsyncd")

	if err := d.engine.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if d.store != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.store.Run(d.ctx, d.engine.Events())
		}()
	}

	if d.bridge != nil {
		if err := d.bridge.Start(d.ctx); err != nil {
			return fmt.Errorf("failed to start mqtt: %w", err)
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Info(component, "starting web server", map[string]interface{}{"address": d.webServer.Addr})
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(component, "web server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *RigsyncDaemon) Stop() error {
	logging.Info(component, "stopping daemon")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.webServer.Shutdown(ctx); err != nil {
		logging.Warn(component, "web server shutdown error", map[string]interface{}{"error": err.Error()})
	}

	if d.bridge != nil {
		if err := d.bridge.Stop(); err != nil {
			logging.Warn(component, "mqtt shutdown error", map[string]interface{}{"error": err.Error()})
		}
	}

	var firstErr error
	if err := d.engine.Stop(); err != nil {
		logging.Error(component, "engine shutdown error", map[string]interface{}{"error": err.Error()})
		firstErr = err
	}

	d.cancel()
	d.wg.Wait()

	if d.store != nil {
		if err := d.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	logging.Info(component, "daemon stopped")
	return firstErr
}

// setupRouter builds the REST and WebSocket routes
func (d *RigsyncDaemon) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/config", d.handleGetConfig)
		api.GET("/serial-ports", d.handleGetSerialPorts)

		radio := api.Group("/radio")
		radio.GET("/state", d.handleGetState)
		radio.GET("/caps", d.handleGetCapabilities)
		radio.GET("/events", d.handleGetEvents)
		radio.DELETE("/events", d.handleDeleteEvents)
		radio.GET("/events/stats", d.handleGetEventStats)
		radio.GET("/frequencies", d.handleGetFrequencies)
		radio.POST("/connect", d.handleConnect)
		radio.POST("/disconnect", d.handleDisconnect)
		radio.POST("/quicksplit", d.handleQuickSplit)
		radio.POST("/band/:band", d.handleSetBand)
		radio.POST("/raw", d.handleRaw)
		radio.PUT("/:field", d.handleSetField)
	}

	router.GET("/ws/state", d.handleStateWebSocket)

	return router
}
