package dto

// Websocket message types exchanged on /api/video/ws.
const (
	WSRegisterDevice = "register_device"
	WSVideoFrame     = "video_frame"
	WSWatchDevice    = "watch_device"
	WSUnwatchDevice  = "unwatch_device"
)

// WSMessage is the JSON envelope for all websocket traffic. Frame carries
// the JPEG bytes base64-encoded by the JSON codec.
type WSMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId,omitempty"`
	Frame    []byte `json:"frame,omitempty"`
}
