package dto

import "time"

// StartStreamRequest is the body of POST /api/video/stream/start.
type StartStreamRequest struct {
	DeviceID string `json:"deviceId" validate:"required"`
}

// StartStreamResponse describes an initialized stream and where to watch it.
type StartStreamResponse struct {
	Message   string `json:"message"`
	DeviceID  string `json:"deviceId"`
	StreamURL string `json:"stream_url"`
}

// FrameReceipt acknowledges a stored frame and reports the detection outcome.
type FrameReceipt struct {
	Status        string    `json:"status"`
	DeviceID      string    `json:"deviceId"`
	FacesDetected int       `json:"faces_detected"`
	Timestamp     time.Time `json:"timestamp"`
}

// StreamInfo is the liveness snapshot for a device channel.
type StreamInfo struct {
	DeviceID   string     `json:"deviceId"`
	Active     bool       `json:"active"`
	LastUpdate *time.Time `json:"last_update"`
	HasFrame   bool       `json:"has_frame"`
}
