package repository

import (
	"camserver/internal/models"
)

// DeviceRepository defines the interface for device data operations.
type DeviceRepository interface {
	// Create operations
	Insert(device *models.Device) error

	// Read operations
	GetBySerial(serial string) (*models.Device, error)
	GetByOwner(ownerID string) ([]models.Device, error)
	OwnerOf(serial string) (string, error)

	// Update operations
	Touch(serial string) error
	SetOwner(serial, ownerID string) error
}
