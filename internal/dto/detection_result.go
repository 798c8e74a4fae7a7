package dto

import "time"

// DetectionResult holds the faces found in the most recent frame of a device.
// Timestamp is nil until detection has run at least once.
type DetectionResult struct {
	Faces     []Face     `json:"faces"`
	Timestamp *time.Time `json:"timestamp"`
}

// EmptyDetectionResult is returned when no detection has been cached yet.
func EmptyDetectionResult() DetectionResult {
	return DetectionResult{Faces: []Face{}}
}
