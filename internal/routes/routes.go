package routes

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"camserver/internal/config"
	"camserver/internal/handlers"
	"camserver/internal/middleware"
	"camserver/internal/repository"
	"camserver/internal/services/stream"
	wshub "camserver/internal/services/websocket"
)

// SetupRoutes registers the video stream API, the device registry API, and
// the websocket push channel. Routes that expose frames or control a channel
// require a bearer token; frame ingestion and the live MJPEG stream do not
// (devices hold no user credential, and the live path matches the observed
// open behavior).
func SetupRoutes(registry *stream.Registry, hub *wshub.HubService, devices repository.DeviceRepository, cfg *config.Config, log *logrus.Logger) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(cfg.JWTSecret, log)
	validate := validator.New()

	// Stream endpoints
	mux.HandleFunc("POST /api/video/stream/start", auth(handlers.StartStreamHandler(registry, validate, log)))
	mux.HandleFunc("POST /api/video/stream/{deviceId}/frame", handlers.PostFrameHandler(registry, log))
	mux.HandleFunc("GET /api/video/stream/{deviceId}/frame", auth(handlers.GetFrameHandler(registry, log)))
	mux.HandleFunc("GET /api/video/stream/{deviceId}/live", handlers.LiveStreamHandler(registry, log))
	mux.HandleFunc("GET /api/video/stream/{deviceId}/detections", auth(handlers.DetectionsHandler(registry, log)))
	mux.HandleFunc("GET /api/video/stream/{deviceId}/info", auth(handlers.StreamInfoHandler(registry, log)))
	mux.HandleFunc("POST /api/video/stream/{deviceId}/stop", auth(handlers.StopStreamHandler(registry, log)))

	// Push channel for devices and viewers
	mux.HandleFunc("GET /api/video/ws", handlers.StreamWebsocketHandler(registry, hub, log))

	// Device registry endpoints
	mux.HandleFunc("POST /api/devices/register", handlers.RegisterDeviceHandler(devices, validate, log))
	mux.HandleFunc("POST /api/devices/assign", auth(handlers.AssignDeviceHandler(devices, validate, log)))
	mux.HandleFunc("GET /api/devices/mine", auth(handlers.MyDevicesHandler(devices, log)))

	return mux
}
