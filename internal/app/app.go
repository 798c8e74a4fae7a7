package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"camserver/internal/config"
	"camserver/internal/logger"
	"camserver/internal/repository/sqlite"
	"camserver/internal/routes"
	"camserver/internal/services/ai"
	"camserver/internal/services/stream"
	wshub "camserver/internal/services/websocket"
)

type App struct {
	config          *config.Config
	log             *logrus.Logger
	db              *sqlite.DB
	detectorService *ai.DetectorService
	registry        *stream.Registry
	hubService      *wshub.HubService
	devices         *sqlite.DeviceRepository
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.New(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device database: %w", err)
	}

	devices := sqlite.NewDeviceRepository(db)
	detector := ai.NewDetectorService(cfg, log)
	registry := stream.NewRegistry(detector, devices, log)
	hub := wshub.NewHubService(log)

	return &App{
		config:          cfg,
		log:             log,
		db:              db,
		detectorService: detector,
		registry:        registry,
		hubService:      hub,
		devices:         devices,
	}, nil
}

func (a *App) Run() error {
	defer a.db.Close()

	// Viewer fan-out runs for the life of the process.
	go a.hubService.Run()

	router := routes.SetupRoutes(a.registry, a.hubService, a.devices, a.config, a.log)

	a.log.Infof("Doorbell stream server listening on :%d", a.config.Port)
	a.log.Infof("Face model: %s", a.config.CaffeModelPath)
	a.log.Infof("Device database: %s", a.config.DatabasePath)

	return http.ListenAndServe(fmt.Sprintf(":%d", a.config.Port), router)
}
