package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"camserver/internal/dto"
	"camserver/internal/services/stream"
	wshub "camserver/internal/services/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsReadDeadline = 60 * time.Second
	wsReadLimit    = 8 << 20 // devices push whole JPEG frames
)

// StreamWebsocketHandler serves the persistent push channel. Devices send
// register_device once and then a sequence of video_frame messages; each
// frame goes through the same registry path as the HTTP ingest and is then
// fanned out to the viewers watching that device. Any connection may send
// watch_device / unwatch_device to control what it receives.
func StreamWebsocketHandler(registry *stream.Registry, hub *wshub.HubService, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(wsReadLimit)
		connection.SetReadDeadline(time.Now().Add(wsReadDeadline))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(wsReadDeadline))
			return nil
		})
		defer connection.Close()

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			_, raw, err := connection.ReadMessage()
			if err != nil {
				log.Infof("Websocket client disconnected: %v", err)
				break
			}
			connection.SetReadDeadline(time.Now().Add(wsReadDeadline))

			var msg dto.WSMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Warnf("Discarding malformed websocket message: %v", err)
				continue
			}

			switch msg.Type {
			case dto.WSRegisterDevice:
				if msg.DeviceID == "" {
					log.Warn("register_device without deviceId, dropping connection")
					return
				}
				registry.OpenChannel(msg.DeviceID)
				log.Infof("Device registered on push channel: %s", msg.DeviceID)

			case dto.WSVideoFrame:
				if msg.DeviceID == "" || len(msg.Frame) == 0 {
					continue
				}
				registry.PostFrame(msg.DeviceID, msg.Frame)
				// The inbound envelope is exactly what viewers expect,
				// so forward it as-is.
				hub.Broadcast(msg.DeviceID, raw)

			case dto.WSWatchDevice:
				if msg.DeviceID != "" {
					hub.Watch(connection, msg.DeviceID)
				}

			case dto.WSUnwatchDevice:
				if msg.DeviceID != "" {
					hub.Unwatch(connection, msg.DeviceID)
				}
			}
		}
	}
}
