package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Frame is one broadcast unit: a prebuilt message routed to the viewers
// watching a single device.
type Frame struct {
	DeviceID string
	Payload  []byte
}

type watchRequest struct {
	client   *websocket.Conn
	deviceID string
}

// HubService fans frames out to viewer connections. Routing is device-scoped:
// a viewer only receives frames for devices it explicitly watches.
type HubService struct {
	clients map[*websocket.Conn]map[string]bool
	rooms   map[string]map[*websocket.Conn]bool

	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	watch      chan watchRequest
	unwatch    chan watchRequest
	broadcast  chan Frame

	mutex sync.RWMutex
	log   *logrus.Logger
}

func NewHubService(log *logrus.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]map[string]bool),
		rooms:      make(map[string]map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		watch:      make(chan watchRequest),
		unwatch:    make(chan watchRequest),
		broadcast:  make(chan Frame, 64),
		log:        log,
	}
}

func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = make(map[string]bool)
			h.mutex.Unlock()
			h.log.Infof("Viewer connected. Total: %d", h.GetClientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			h.dropClient(client)
			h.mutex.Unlock()
			h.log.Infof("Viewer disconnected. Total: %d", h.GetClientCount())

		case req := <-h.watch:
			h.mutex.Lock()
			if watched, ok := h.clients[req.client]; ok {
				watched[req.deviceID] = true
				room, ok := h.rooms[req.deviceID]
				if !ok {
					room = make(map[*websocket.Conn]bool)
					h.rooms[req.deviceID] = room
				}
				room[req.client] = true
			}
			h.mutex.Unlock()
			h.log.Infof("Viewer watching device %s", req.deviceID)

		case req := <-h.unwatch:
			h.mutex.Lock()
			if watched, ok := h.clients[req.client]; ok {
				delete(watched, req.deviceID)
			}
			if room, ok := h.rooms[req.deviceID]; ok {
				delete(room, req.client)
				if len(room) == 0 {
					delete(h.rooms, req.deviceID)
				}
			}
			h.mutex.Unlock()

		case frame := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.rooms[frame.DeviceID] {
				err := client.WriteMessage(websocket.TextMessage, frame.Payload)
				if err != nil {
					h.log.Errorf("Error sending frame to viewer: %v", err)
					h.dropClient(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// dropClient removes a connection from every room. Caller holds the lock.
func (h *HubService) dropClient(client *websocket.Conn) {
	watched, ok := h.clients[client]
	if !ok {
		return
	}
	for deviceID := range watched {
		if room, ok := h.rooms[deviceID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, deviceID)
			}
		}
	}
	delete(h.clients, client)
	client.Close()
}

func (h *HubService) Register(client *websocket.Conn) {
	h.register <- client
}

func (h *HubService) Unregister(client *websocket.Conn) {
	h.unregister <- client
}

func (h *HubService) Watch(client *websocket.Conn, deviceID string) {
	h.watch <- watchRequest{client: client, deviceID: deviceID}
}

func (h *HubService) Unwatch(client *websocket.Conn, deviceID string) {
	h.unwatch <- watchRequest{client: client, deviceID: deviceID}
}

// Broadcast queues a frame for every viewer watching the device.
func (h *HubService) Broadcast(deviceID string, payload []byte) {
	h.broadcast <- Frame{DeviceID: deviceID, Payload: payload}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// GetWatcherCount reports how many viewers watch a device.
func (h *HubService) GetWatcherCount(deviceID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[deviceID])
}
