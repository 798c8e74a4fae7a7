package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"camserver/internal/dto"
	"camserver/internal/middleware"
	"camserver/internal/services/stream"
)

// StartStreamHandler initializes a channel for a device and binds it to the
// calling user.
func StartStreamHandler(registry *stream.Registry, validate *validator.Validate, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.StartStreamRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "deviceId required")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusBadRequest, "deviceId required")
			return
		}

		userID := middleware.Identity(r.Context())
		if err := registry.Start(req.DeviceID, userID); err != nil {
			writeStreamError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, dto.StartStreamResponse{
			Message:   "Stream initialized",
			DeviceID:  req.DeviceID,
			StreamURL: fmt.Sprintf("/api/video/stream/%s/live", req.DeviceID),
		})
	}
}

// PostFrameHandler receives a frame from a device as multipart form data.
// A well-formed upload always succeeds; detection problems degrade to zero
// faces instead of failing the device's reporting loop.
func PostFrameHandler(registry *stream.Registry, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.PathValue("deviceId")

		file, _, err := r.FormFile("frame")
		if err != nil {
			writeError(w, http.StatusBadRequest, "no frame provided")
			return
		}
		defer file.Close()

		frame, err := io.ReadAll(file)
		if err != nil {
			log.Errorf("Error reading frame upload from device %s: %v", deviceID, err)
			writeError(w, http.StatusBadRequest, "no frame provided")
			return
		}

		facesDetected, timestamp := registry.PostFrame(deviceID, frame)

		writeJSON(w, http.StatusOK, dto.FrameReceipt{
			Status:        "ok",
			DeviceID:      deviceID,
			FacesDetected: facesDetected,
			Timestamp:     timestamp,
		})
	}
}

// GetFrameHandler returns the latest frame for a device as raw JPEG bytes.
func GetFrameHandler(registry *stream.Registry, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.PathValue("deviceId")
		userID := middleware.Identity(r.Context())

		frame, err := registry.GetFrame(deviceID, userID)
		if err != nil {
			writeStreamError(w, log, err)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(frame)
	}
}

// LiveStreamHandler serves an MJPEG stream for a device. Frames are pushed
// as they arrive; the handler blocks between frames and emits nothing until
// the device posts its first frame. The stream only ends when the client
// goes away.
func LiveStreamHandler(registry *stream.Registry, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.PathValue("deviceId")

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		frames, cancel := registry.Subscribe(deviceID)
		defer cancel()

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache")

		for {
			select {
			case frame := <-frames:
				if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
					return
				}
				if _, err := w.Write(frame); err != nil {
					return
				}
				if _, err := io.WriteString(w, "\r\n"); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}

// DetectionsHandler returns the cached face detections for a device.
func DetectionsHandler(registry *stream.Registry, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.PathValue("deviceId")
		userID := middleware.Identity(r.Context())

		result, err := registry.Detections(deviceID, userID)
		if err != nil {
			writeStreamError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// StreamInfoHandler reports channel liveness for a device.
func StreamInfoHandler(registry *stream.Registry, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.PathValue("deviceId")

		info, err := registry.Info(deviceID)
		if err != nil {
			writeStreamError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// StopStreamHandler removes a device channel and its cached detections.
func StopStreamHandler(registry *stream.Registry, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.PathValue("deviceId")
		userID := middleware.Identity(r.Context())

		if err := registry.Stop(deviceID, userID); err != nil {
			writeStreamError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message":  "Stream stopped",
			"deviceId": deviceID,
		})
	}
}
