package dto

// RegisterDeviceRequest is sent by a device when it first comes online.
type RegisterDeviceRequest struct {
	DeviceID   string `json:"deviceId" validate:"required"`
	DeviceName string `json:"deviceName"`
}

// AssignDeviceRequest binds a registered device to the calling user.
type AssignDeviceRequest struct {
	DeviceID string `json:"deviceId" validate:"required"`
}
