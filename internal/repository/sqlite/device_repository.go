package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"camserver/internal/models"
)

// DeviceRepository implements repository.DeviceRepository for SQLite.
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new SQLite device repository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Insert adds a new device record to the database.
func (r *DeviceRepository) Insert(device *models.Device) error {
	r.db.Lock()
	defer r.db.Unlock()

	var lastSeen interface{}
	if device.LastSeen != nil {
		lastSeen = *device.LastSeen
	}
	var ownerID interface{}
	if device.OwnerID != "" {
		ownerID = device.OwnerID
	}

	_, err := r.db.Conn().Exec(`
		INSERT INTO devices (id, serial_number, name, owner_id, is_online, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, device.ID, device.SerialNumber, device.Name, ownerID, device.IsOnline, lastSeen)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

// GetBySerial retrieves a device by its serial number. Returns (nil, nil)
// when no such device exists.
func (r *DeviceRepository) GetBySerial(serial string) (*models.Device, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, serial_number, name, owner_id, is_online, last_seen
		FROM devices WHERE serial_number = ?
	`, serial)

	device, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return device, nil
}

// GetByOwner retrieves all devices assigned to a user.
func (r *DeviceRepository) GetByOwner(ownerID string) ([]models.Device, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, serial_number, name, owner_id, is_online, last_seen
		FROM devices WHERE owner_id = ? ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *device)
	}
	return devices, rows.Err()
}

// OwnerOf returns the assigned owner of a device, "" when the device is
// unknown or unassigned.
func (r *DeviceRepository) OwnerOf(serial string) (string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var ownerID sql.NullString
	err := r.db.Conn().QueryRow(`SELECT owner_id FROM devices WHERE serial_number = ?`, serial).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query device owner: %w", err)
	}
	return ownerID.String, nil
}

// Touch marks a device online and updates its last-seen time.
func (r *DeviceRepository) Touch(serial string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`
		UPDATE devices SET is_online = 1, last_seen = ? WHERE serial_number = ?
	`, time.Now().UTC(), serial); err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return nil
}

// SetOwner assigns a device to a user and marks it online.
func (r *DeviceRepository) SetOwner(serial, ownerID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`
		UPDATE devices SET owner_id = ?, is_online = 1, last_seen = ? WHERE serial_number = ?
	`, ownerID, time.Now().UTC(), serial); err != nil {
		return fmt.Errorf("failed to assign device: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var device models.Device
	var ownerID sql.NullString
	var lastSeen sql.NullTime

	if err := row.Scan(&device.ID, &device.SerialNumber, &device.Name, &ownerID, &device.IsOnline, &lastSeen); err != nil {
		return nil, err
	}
	device.OwnerID = ownerID.String
	if lastSeen.Valid {
		t := lastSeen.Time
		device.LastSeen = &t
	}
	return &device, nil
}
