package stream

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"camserver/internal/dto"
)

type stubDetector struct {
	faces []dto.Face
}

func (d *stubDetector) Detect(frame []byte) []dto.Face {
	return d.faces
}

type stubOwners struct {
	owners map[string]string
	err    error
}

func (s *stubOwners) OwnerOf(deviceID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.owners[deviceID], nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestRegistry(detector Detector, owners OwnerLookup) *Registry {
	return NewRegistry(detector, owners, testLogger())
}

func TestRegistry_UnknownDevice(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	if _, err := registry.GetFrame("never-seen", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFrame on unknown device: expected ErrNotFound, got %v", err)
	}
	if _, err := registry.Info("never-seen"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Info on unknown device: expected ErrNotFound, got %v", err)
	}
	if _, err := registry.Detections("never-seen", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Detections on unknown device: expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_LastWriteWins(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	registry.PostFrame("pi-01", []byte("frame-1"))
	registry.PostFrame("pi-01", []byte("frame-2"))

	frame, err := registry.GetFrame("pi-01", "")
	if err != nil {
		t.Fatalf("GetFrame failed: %v", err)
	}
	if !bytes.Equal(frame, []byte("frame-2")) {
		t.Errorf("Expected latest frame, got %q", frame)
	}
}

func TestRegistry_ImplicitChannelIsOpen(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	registry.PostFrame("pi-01", []byte("frame"))

	// Any identity may read an ownerless channel.
	if _, err := registry.GetFrame("pi-01", "someone"); err != nil {
		t.Errorf("Open channel must be readable by anyone, got %v", err)
	}
	if _, err := registry.GetFrame("pi-01", ""); err != nil {
		t.Errorf("Open channel must be readable anonymously, got %v", err)
	}
}

func TestRegistry_Liveness(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	registry.PostFrame("pi-01", []byte("frame"))

	info, err := registry.Info("pi-01")
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if !info.Active {
		t.Error("Device must be active immediately after a frame post")
	}
	if !info.HasFrame {
		t.Error("HasFrame must be true after a frame post")
	}
	if info.LastUpdate == nil {
		t.Fatal("LastUpdate must be set after a frame post")
	}

	// A query after the liveness window with no further posts reports inactive.
	registry.now = func() time.Time { return time.Now().Add(6 * time.Second) }

	info, err = registry.Info("pi-01")
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Active {
		t.Error("Device must be inactive once the liveness window has elapsed")
	}
}

func TestRegistry_Ownership(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	if err := registry.Start("pi-01", "u1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	registry.PostFrame("pi-01", []byte("frame"))

	if _, err := registry.GetFrame("pi-01", "u2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Read by non-owner: expected ErrForbidden, got %v", err)
	}
	if _, err := registry.GetFrame("pi-01", "u1"); err != nil {
		t.Errorf("Read by owner must succeed, got %v", err)
	}
	if _, err := registry.Detections("pi-01", "u2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Detections by non-owner: expected ErrForbidden, got %v", err)
	}
}

func TestRegistry_OwnerIsImmutable(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	if err := registry.Start("pi-01", "u1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := registry.Start("pi-01", "u2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Start by a different user: expected ErrForbidden, got %v", err)
	}

	// Restart by the owner re-initializes the frame but keeps the binding.
	registry.PostFrame("pi-01", []byte("frame"))
	if err := registry.Start("pi-01", "u1"); err != nil {
		t.Fatalf("Restart by owner failed: %v", err)
	}
	if _, err := registry.GetFrame("pi-01", "u1"); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Restart must drop the stale frame, got %v", err)
	}
}

func TestRegistry_StartBindsOpenChannel(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	registry.PostFrame("pi-01", []byte("frame"))

	if err := registry.Start("pi-01", "u1"); err != nil {
		t.Fatalf("Start on open channel failed: %v", err)
	}
	if _, err := registry.GetFrame("pi-01", "u2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Channel must be bound after Start, got %v", err)
	}
}

func TestRegistry_NoFrameYet(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	if err := registry.Start("pi-01", "u1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := registry.GetFrame("pi-01", "u1"); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame before first post, got %v", err)
	}
}

func TestRegistry_DetectionCaching(t *testing.T) {
	faces := []dto.Face{
		{Box: [4]int{10, 10, 50, 50}, Confidence: 0.6},
		{Box: [4]int{60, 60, 90, 90}, Confidence: 0.9},
	}
	registry := newTestRegistry(&stubDetector{faces: faces}, nil)

	count, _ := registry.PostFrame("pi-01", []byte("frame"))
	if count != 2 {
		t.Fatalf("Expected 2 faces detected, got %d", count)
	}

	result, err := registry.Detections("pi-01", "")
	if err != nil {
		t.Fatalf("Detections failed: %v", err)
	}
	if len(result.Faces) != 2 {
		t.Fatalf("Expected 2 cached faces, got %d", len(result.Faces))
	}
	if result.Faces[0].Box != faces[0].Box || result.Faces[1].Box != faces[1].Box {
		t.Errorf("Cached boxes do not match detector output: %v", result.Faces)
	}
	if result.Timestamp == nil {
		t.Error("Detection timestamp must be set")
	}
}

func TestRegistry_DetectionTimestampOrdering(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	registry.PostFrame("pi-01", []byte("frame"))

	info, _ := registry.Info("pi-01")
	result, _ := registry.Detections("pi-01", "")

	if result.Timestamp.Before(*info.LastUpdate) {
		t.Error("Detection timestamp must not precede the frame timestamp it was computed from")
	}
}

func TestRegistry_EmptyDetectionsBeforeAnyRun(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	if err := registry.Start("pi-01", ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result, err := registry.Detections("pi-01", "")
	if err != nil {
		t.Fatalf("Detections failed: %v", err)
	}
	if result.Faces == nil || len(result.Faces) != 0 {
		t.Errorf("Expected empty face list, got %v", result.Faces)
	}
	if result.Timestamp != nil {
		t.Error("Timestamp must be nil before detection has run")
	}
}

func TestRegistry_StopIsIdempotent(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	// Stopping a channel that never existed succeeds.
	if err := registry.Stop("never-seen", "u1"); err != nil {
		t.Errorf("Stop on unknown device must be a no-op, got %v", err)
	}

	registry.PostFrame("pi-01", []byte("frame"))
	if err := registry.Stop("pi-01", "u1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := registry.Stop("pi-01", "u1"); err != nil {
		t.Errorf("Second stop must also succeed, got %v", err)
	}

	if _, err := registry.GetFrame("pi-01", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Channel must be gone after stop, got %v", err)
	}
	if _, err := registry.Detections("pi-01", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Detections must be gone after stop, got %v", err)
	}
}

func TestRegistry_StopEnforcesOwnership(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	if err := registry.Start("pi-01", "u1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := registry.Stop("pi-01", "u2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Stop by non-owner: expected ErrForbidden, got %v", err)
	}
	if err := registry.Stop("pi-01", "u1"); err != nil {
		t.Errorf("Stop by owner must succeed, got %v", err)
	}
}

func TestRegistry_OwnershipPreseed(t *testing.T) {
	owners := &stubOwners{owners: map[string]string{"pi-01": "u1"}}
	registry := newTestRegistry(&stubDetector{}, owners)

	// Implicit creation consults the device repository.
	registry.PostFrame("pi-01", []byte("frame"))

	if _, err := registry.GetFrame("pi-01", "u2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Pre-seeded channel must reject other users, got %v", err)
	}
	if _, err := registry.GetFrame("pi-01", "u1"); err != nil {
		t.Errorf("Pre-seeded owner must be able to read, got %v", err)
	}
}

func TestRegistry_PreseedFailureDegradesToOpen(t *testing.T) {
	owners := &stubOwners{err: errors.New("database down")}
	registry := newTestRegistry(&stubDetector{}, owners)

	registry.PostFrame("pi-01", []byte("frame"))

	if _, err := registry.GetFrame("pi-01", "anyone"); err != nil {
		t.Errorf("Lookup failure must leave the channel open, got %v", err)
	}
}

func TestRegistry_OpenChannelKeepsOwner(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	if err := registry.Start("pi-01", "u1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	registry.PostFrame("pi-01", []byte("frame"))

	registry.OpenChannel("pi-01")

	if _, err := registry.GetFrame("pi-01", "u1"); !errors.Is(err, ErrNoFrame) {
		t.Errorf("OpenChannel must drop the stale frame, got %v", err)
	}
	if _, err := registry.GetFrame("pi-01", "u2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("OpenChannel must not unbind the owner, got %v", err)
	}
}
