package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"camserver/internal/dto"
	"camserver/internal/middleware"
	"camserver/internal/models"
	"camserver/internal/repository"
)

// RegisterDeviceHandler upserts a device record when it comes online.
// Devices are not authenticated callers, so this endpoint is open.
func RegisterDeviceHandler(devices repository.DeviceRepository, validate *validator.Validate, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.RegisterDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "deviceId required")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusBadRequest, "deviceId required")
			return
		}
		if req.DeviceName == "" {
			req.DeviceName = "My Doorbell"
		}

		device, err := devices.GetBySerial(req.DeviceID)
		if err != nil {
			log.Errorf("Device lookup failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if device == nil {
			now := time.Now().UTC()
			device = &models.Device{
				ID:           uuid.NewString(),
				SerialNumber: req.DeviceID,
				Name:         req.DeviceName,
				IsOnline:     true,
				LastSeen:     &now,
			}
			if err := devices.Insert(device); err != nil {
				log.Errorf("Device insert failed: %v", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			log.Infof("New device registered: %s", req.DeviceID)
		} else {
			if err := devices.Touch(req.DeviceID); err != nil {
				log.Errorf("Device touch failed: %v", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "Device registered",
			"deviceId":   device.SerialNumber,
			"deviceName": device.Name,
			"is_online":  true,
		})
	}
}

// AssignDeviceHandler binds a registered device to the calling user.
// First writer wins: a device owned by someone else cannot be reassigned.
func AssignDeviceHandler(devices repository.DeviceRepository, validate *validator.Validate, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.AssignDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "deviceId required")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusBadRequest, "deviceId required")
			return
		}

		userID := middleware.Identity(r.Context())

		device, err := devices.GetBySerial(req.DeviceID)
		if err != nil {
			log.Errorf("Device lookup failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if device == nil {
			writeError(w, http.StatusNotFound, "Device not found")
			return
		}
		if device.OwnerID != "" && device.OwnerID != userID {
			writeError(w, http.StatusForbidden, "Device already assigned to another user")
			return
		}

		if err := devices.SetOwner(req.DeviceID, userID); err != nil {
			log.Errorf("Device assignment failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "Device assigned to user",
			"deviceId":   device.SerialNumber,
			"deviceName": device.Name,
			"owner_id":   userID,
		})
	}
}

// MyDevicesHandler lists the devices assigned to the calling user.
func MyDevicesHandler(devices repository.DeviceRepository, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Identity(r.Context())

		owned, err := devices.GetByOwner(userID)
		if err != nil {
			log.Errorf("Device listing failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if owned == nil {
			owned = []models.Device{}
		}
		writeJSON(w, http.StatusOK, owned)
	}
}
