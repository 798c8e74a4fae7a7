package models

import "time"

// Device is a registered edge camera. OwnerID is empty until a user claims
// the device; an unclaimed device produces open (world-readable) channels.
type Device struct {
	ID           string     `json:"id"`
	SerialNumber string     `json:"serial_number"`
	Name         string     `json:"name"`
	OwnerID      string     `json:"owner_id,omitempty"`
	IsOnline     bool       `json:"is_online"`
	LastSeen     *time.Time `json:"last_seen"`
}
