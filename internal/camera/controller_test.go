package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
)

type fakeStream struct {
	frame  image.Image
	closed int
}

func (s *fakeStream) Ready() bool { return s.frame != nil && s.closed == 0 }
func (s *fakeStream) CurrentFrame() (image.Image, bool) {
	return s.frame, s.frame != nil
}
func (s *fakeStream) Close() error {
	s.closed++
	return nil
}

type fakeDevices struct {
	secure  bool
	err     error
	calls   int
	streams []*fakeStream
	last    Constraints
}

func (d *fakeDevices) SecureContext() bool { return d.secure }

func (d *fakeDevices) GetUserMedia(_ context.Context, c Constraints) (Stream, error) {
	d.calls++
	d.last = c
	if d.err != nil {
		return nil, d.err
	}
	s := &fakeStream{frame: image.NewRGBA(image.Rect(0, 0, 4, 3))}
	d.streams = append(d.streams, s)
	return s, nil
}

func TestAcquireInsecureContextSkipsMediaAPI(t *testing.T) {
	devices := &fakeDevices{secure: false}
	c := NewController(devices)

	h, err := c.Acquire(context.Background(), DefaultConstraints())
	if h != nil {
		t.Fatalf("Expected no handle, got %v", h)
	}
	if !errors.Is(err, ErrInsecureContext) {
		t.Fatalf("Expected insecure context error, got %v", err)
	}
	if devices.calls != 0 {
		t.Errorf("Expected 0 calls to the media API, got %d", devices.calls)
	}
}

func TestAcquireClassifiesErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
		kind     Kind
	}{
		{name: "permission", err: fmt.Errorf("wrapped: %w", ErrNotAllowed), expected: ErrPermissionDenied, kind: PermissionDenied},
		{name: "not found", err: ErrNotFound, expected: ErrDeviceNotFound, kind: DeviceNotFound},
		{name: "busy", err: ErrNotReadable, expected: ErrDeviceBusy, kind: DeviceBusy},
		{name: "unknown", err: errors.New("driver exploded"), expected: ErrUnknown, kind: Unknown},
	}

	messages := map[string]bool{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(&fakeDevices{secure: true, err: tt.err})
			_, err := c.Acquire(context.Background(), Constraints{})
			if !errors.Is(err, tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, err)
			}
			var acqErr *AcquisitionError
			if !errors.As(err, &acqErr) || acqErr.Kind != tt.kind {
				t.Fatalf("Expected kind %s, got %v", tt.kind, err)
			}
			messages[acqErr.UserMessage()] = true
		})
	}

	if len(messages) != len(tests) {
		t.Errorf("Expected %d distinct user messages, got %d", len(tests), len(messages))
	}
}

func TestAcquireAppliesDefaultConstraints(t *testing.T) {
	devices := &fakeDevices{secure: true}
	c := NewController(devices)

	if _, err := c.Acquire(context.Background(), Constraints{Width: 640}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := Constraints{FacingMode: FacingEnvironment, Width: 640, Height: 1080}
	if devices.last != expected {
		t.Errorf("Expected %+v, got %+v", expected, devices.last)
	}
}

func TestAcquireReleasesPreviousStream(t *testing.T) {
	devices := &fakeDevices{secure: true}
	c := NewController(devices)

	first, err := c.Acquire(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := c.Acquire(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if first.Live() {
		t.Errorf("Expected first handle to be released")
	}
	if devices.streams[0].closed != 1 {
		t.Errorf("Expected first stream closed once, got %d", devices.streams[0].closed)
	}
	if !second.Live() || c.Current() != second {
		t.Errorf("Expected second handle to be current and live")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	devices := &fakeDevices{secure: true}
	c := NewController(devices)

	h, err := c.Acquire(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	c.Release(h)
	c.Release(h)
	c.Release(nil)

	if devices.streams[0].closed != 1 {
		t.Errorf("Expected stream closed once, got %d", devices.streams[0].closed)
	}
	if h.Live() || h.Ready() {
		t.Errorf("Expected released handle to be neither live nor ready")
	}
	if _, ok := h.Frame(); ok {
		t.Errorf("Expected no frame from a released handle")
	}
	if c.Current() != nil {
		t.Errorf("Expected no current handle after release")
	}
}
