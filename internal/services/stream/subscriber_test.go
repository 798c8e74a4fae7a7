package stream

import (
	"bytes"
	"testing"
	"time"
)

func receiveFrame(t *testing.T, frames <-chan []byte) []byte {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for a frame")
		return nil
	}
}

func TestSubscribe_ReceivesPostedFrames(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	frames, cancel := registry.Subscribe("pi-01")
	defer cancel()

	registry.PostFrame("pi-01", []byte("frame-1"))

	if got := receiveFrame(t, frames); !bytes.Equal(got, []byte("frame-1")) {
		t.Errorf("Expected frame-1, got %q", got)
	}
}

func TestSubscribe_NothingBeforeFirstPost(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	frames, cancel := registry.Subscribe("pi-01")
	defer cancel()

	select {
	case frame := <-frames:
		t.Fatalf("Received %q before any frame was posted", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_LateJoinerGetsCurrentFrame(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	registry.PostFrame("pi-01", []byte("frame-1"))

	frames, cancel := registry.Subscribe("pi-01")
	defer cancel()

	if got := receiveFrame(t, frames); !bytes.Equal(got, []byte("frame-1")) {
		t.Errorf("Late joiner must get the current frame, got %q", got)
	}
}

func TestSubscribe_LatestWins(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	frames, cancel := registry.Subscribe("pi-01")
	defer cancel()

	// The subscriber is not draining, so intermediate frames are dropped.
	registry.PostFrame("pi-01", []byte("frame-1"))
	registry.PostFrame("pi-01", []byte("frame-2"))
	registry.PostFrame("pi-01", []byte("frame-3"))

	if got := receiveFrame(t, frames); !bytes.Equal(got, []byte("frame-3")) {
		t.Errorf("Slow consumer must see the latest frame, got %q", got)
	}
}

func TestSubscribe_ScopedToDevice(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	frames, cancel := registry.Subscribe("pi-01")
	defer cancel()

	registry.PostFrame("pi-02", []byte("other-device"))

	select {
	case frame := <-frames:
		t.Fatalf("Received another device's frame: %q", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	registry := newTestRegistry(&stubDetector{}, nil)

	frames, cancel := registry.Subscribe("pi-01")
	cancel()

	if _, ok := <-frames; ok {
		t.Error("Channel must be closed after cancel")
	}

	// Cancel twice is safe, and publishing afterwards must not panic.
	cancel()
	registry.PostFrame("pi-01", []byte("frame"))
}
