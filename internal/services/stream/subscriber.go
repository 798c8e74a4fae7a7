package stream

// subscriber is one live viewer of a device. Its channel has capacity one:
// delivery is latest-wins, a consumer that falls behind only ever sees the
// most recent frame.
type subscriber struct {
	ch chan []byte
}

func (s *subscriber) push(frame []byte) {
	select {
	case s.ch <- frame:
	default:
		// Full. Drop the stale frame and retry once; losing the race to
		// another push just means an even newer frame won.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- frame:
		default:
		}
	}
}

// Subscribe registers a live viewer for a device and returns the delivery
// channel plus a cancel func that must be called when the viewer goes away.
// If the device already has a frame it is delivered immediately, so a late
// joiner does not wait for the next ingest. Subscribing does not create a
// channel and performs no ownership check.
func (r *Registry) Subscribe(deviceID string) (<-chan []byte, func()) {
	sub := &subscriber{ch: make(chan []byte, 1)}

	r.subMu.Lock()
	set, ok := r.subs[deviceID]
	if !ok {
		set = make(map[*subscriber]struct{})
		r.subs[deviceID] = set
	}
	set[sub] = struct{}{}
	r.subMu.Unlock()

	r.mu.RLock()
	ch, ok := r.channels[deviceID]
	r.mu.RUnlock()
	if ok {
		ch.mu.Lock()
		frame := ch.frame
		ch.mu.Unlock()
		if len(frame) > 0 {
			sub.push(frame)
		}
	}

	cancel := func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		set, ok := r.subs[deviceID]
		if !ok {
			return
		}
		if _, ok := set[sub]; !ok {
			return
		}
		delete(set, sub)
		close(sub.ch)
		if len(set) == 0 {
			delete(r.subs, deviceID)
		}
	}
	return sub.ch, cancel
}

// publish fans the frame out to every live subscriber of the device.
// Pushes never block, so holding subMu here stays cheap.
func (r *Registry) publish(deviceID string, frame []byte) {
	r.subMu.Lock()
	for sub := range r.subs[deviceID] {
		sub.push(frame)
	}
	r.subMu.Unlock()
}
