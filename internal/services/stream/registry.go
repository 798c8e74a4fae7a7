package stream

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"camserver/internal/dto"
)

// ActiveWindow is how recently a device must have posted a frame to be
// reported as active.
const ActiveWindow = 5 * time.Second

// Detector finds faces in an encoded frame. Implementations never fail:
// an undecodable frame yields an empty result.
type Detector interface {
	Detect(frame []byte) []dto.Face
}

// OwnerLookup resolves the assigned owner of a device, "" when unassigned.
type OwnerLookup interface {
	OwnerOf(deviceID string) (string, error)
}

// channel is the per-device record. The registry map is guarded by its own
// lock; each channel carries its own mutex so writes to one device never
// serialize reads of another.
type channel struct {
	mu         sync.Mutex
	frame      []byte
	frameTime  time.Time
	ownerID    string
	lastUpdate time.Time
}

// Registry is the single source of truth for the latest frame and detection
// result per device. Critical sections cover map and field access only;
// detector inference and database reads always happen outside the locks.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*channel

	detMu      sync.Mutex
	detections map[string]dto.DetectionResult

	subMu sync.Mutex
	subs  map[string]map[*subscriber]struct{}

	detector Detector
	owners   OwnerLookup
	log      *logrus.Logger
	now      func() time.Time
}

func NewRegistry(detector Detector, owners OwnerLookup, log *logrus.Logger) *Registry {
	return &Registry{
		channels:   make(map[string]*channel),
		detections: make(map[string]dto.DetectionResult),
		subs:       make(map[string]map[*subscriber]struct{}),
		detector:   detector,
		owners:     owners,
		log:        log,
		now:        time.Now,
	}
}

// Start creates or re-initializes the channel for a device and binds it to
// ownerID if no owner is bound yet. A channel keeps its first owner for its
// whole life; a different caller gets ErrForbidden.
func (r *Registry) Start(deviceID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, exists := r.channels[deviceID]
	if !exists {
		r.channels[deviceID] = &channel{ownerID: ownerID, lastUpdate: r.now()}
		r.log.Infof("Stream initialized for device %s", deviceID)
		return nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.ownerID != "" && ch.ownerID != ownerID {
		return ErrForbidden
	}
	ch.ownerID = ownerID
	ch.frame = nil
	ch.frameTime = time.Time{}
	ch.lastUpdate = r.now()
	return nil
}

// OpenChannel makes sure a channel exists for a device and drops any stale
// frame. Used by the push ingest path on device registration; it never binds
// or rebinds ownership.
func (r *Registry) OpenChannel(deviceID string) {
	ch := r.getOrCreate(deviceID)
	ch.mu.Lock()
	ch.frame = nil
	ch.frameTime = time.Time{}
	ch.lastUpdate = r.now()
	ch.mu.Unlock()
}

// PostFrame stores the frame as the device's latest, notifies live viewers,
// runs face detection, and caches the result. It creates an open channel
// implicitly for an unseen device and never fails on detector problems.
func (r *Registry) PostFrame(deviceID string, frame []byte) (int, time.Time) {
	ch := r.getOrCreate(deviceID)

	now := r.now()
	ch.mu.Lock()
	ch.frame = frame
	ch.frameTime = now
	ch.lastUpdate = now
	ch.mu.Unlock()

	r.publish(deviceID, frame)

	// Inference runs outside every lock so a slow frame cannot stall
	// other devices' traffic.
	faces := r.detector.Detect(frame)
	if faces == nil {
		faces = []dto.Face{}
	}

	ts := r.now()
	r.detMu.Lock()
	r.detections[deviceID] = dto.DetectionResult{Faces: faces, Timestamp: &ts}
	r.detMu.Unlock()

	return len(faces), ts
}

// GetFrame returns the latest frame for a device, enforcing ownership.
func (r *Registry) GetFrame(deviceID, requesterID string) ([]byte, error) {
	r.mu.RLock()
	ch, ok := r.channels[deviceID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.ownerID != "" && ch.ownerID != requesterID {
		return nil, ErrForbidden
	}
	if len(ch.frame) == 0 {
		return nil, ErrNoFrame
	}
	return ch.frame, nil
}

// Info reports liveness for a device channel. Active is derived from the
// last successful frame write, not stored.
func (r *Registry) Info(deviceID string) (dto.StreamInfo, error) {
	r.mu.RLock()
	ch, ok := r.channels[deviceID]
	r.mu.RUnlock()
	if !ok {
		return dto.StreamInfo{}, ErrNotFound
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	info := dto.StreamInfo{
		DeviceID: deviceID,
		HasFrame: len(ch.frame) > 0,
	}
	if !ch.lastUpdate.IsZero() {
		lastUpdate := ch.lastUpdate
		info.LastUpdate = &lastUpdate
		info.Active = r.now().Sub(ch.lastUpdate) < ActiveWindow
	}
	return info, nil
}

// Detections returns the cached detection result for a device, or an empty
// result if detection has not run yet. The cache is only eventually
// consistent with the frame store: a frame may be newer than its cached
// detections.
func (r *Registry) Detections(deviceID, requesterID string) (dto.DetectionResult, error) {
	r.mu.RLock()
	ch, ok := r.channels[deviceID]
	r.mu.RUnlock()
	if !ok {
		return dto.DetectionResult{}, ErrNotFound
	}

	ch.mu.Lock()
	ownerID := ch.ownerID
	ch.mu.Unlock()
	if ownerID != "" && ownerID != requesterID {
		return dto.DetectionResult{}, ErrForbidden
	}

	r.detMu.Lock()
	defer r.detMu.Unlock()
	if res, ok := r.detections[deviceID]; ok {
		return res, nil
	}
	return dto.EmptyDetectionResult(), nil
}

// Stop removes the channel and its cached detections. Stopping a channel
// that does not exist is a successful no-op.
func (r *Registry) Stop(deviceID, requesterID string) error {
	r.mu.Lock()
	if ch, ok := r.channels[deviceID]; ok {
		ch.mu.Lock()
		ownerID := ch.ownerID
		ch.mu.Unlock()
		if ownerID != "" && ownerID != requesterID {
			r.mu.Unlock()
			return ErrForbidden
		}
		delete(r.channels, deviceID)
		r.log.Infof("Stream stopped for device %s", deviceID)
	}
	r.mu.Unlock()

	r.detMu.Lock()
	delete(r.detections, deviceID)
	r.detMu.Unlock()
	return nil
}

func (r *Registry) getOrCreate(deviceID string) *channel {
	r.mu.RLock()
	ch, ok := r.channels[deviceID]
	r.mu.RUnlock()
	if ok {
		return ch
	}

	// Ownership pre-seed is a database read, resolve it before locking.
	// A failed lookup degrades to an open channel.
	owner := ""
	if r.owners != nil {
		o, err := r.owners.OwnerOf(deviceID)
		if err != nil {
			r.log.Errorf("Owner lookup failed for device %s: %v", deviceID, err)
		} else {
			owner = o
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[deviceID]; ok {
		return ch
	}
	ch = &channel{ownerID: owner}
	r.channels[deviceID] = ch
	if owner != "" {
		r.log.Infof("Channel for device %s pre-bound to owner %s", deviceID, owner)
	}
	return ch
}
