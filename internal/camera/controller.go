package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Facing modes accepted as a constraint hint
const (
	FacingEnvironment = "environment"
	FacingUser        = "user"
)

const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Constraints are acquisition hints. Drivers may deliver a different resolution.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
}

// DefaultConstraints requests the rear camera at 1920x1080
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: FacingEnvironment, Width: DefaultWidth, Height: DefaultHeight}
}

func (c Constraints) withDefaults() Constraints {
	d := DefaultConstraints()
	if c.FacingMode == "" {
		c.FacingMode = d.FacingMode
	}
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	return c
}

// Stream is a live camera stream.
//
// Implementations must guarantee:
//   - CurrentFrame never blocks; it returns the most recent frame, if any
//   - Ready reports whether at least one frame has been produced
//   - Close is idempotent
type Stream interface {
	Ready() bool
	CurrentFrame() (image.Image, bool)
	Close() error
}

// MediaDevices is the underlying media API
type MediaDevices interface {
	// SecureContext reports whether acquisition is allowed from this context
	SecureContext() bool
	// GetUserMedia opens a stream. Failures should wrap ErrNotAllowed,
	// ErrNotFound or ErrNotReadable when they can be identified.
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// Handle is exclusive ownership of an acquired stream
type Handle struct {
	id     uuid.UUID
	stream Stream

	once     sync.Once
	mu       sync.RWMutex
	released bool
}

func (h *Handle) ID() uuid.UUID { return h.id }

// Live reports whether the handle still owns an open stream
func (h *Handle) Live() bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.released
}

// Ready reports whether the stream is live and producing frames
func (h *Handle) Ready() bool {
	return h.Live() && h.stream.Ready()
}

// Frame returns the current frame of a live stream
func (h *Handle) Frame() (image.Image, bool) {
	if !h.Live() {
		return nil, false
	}
	return h.stream.CurrentFrame()
}

func (h *Handle) release() {
	h.once.Do(func() {
		h.mu.Lock()
		h.released = true
		h.mu.Unlock()

		if err := h.stream.Close(); err != nil {
			slog.Warn("Failed to close camera stream", "handle", h.id, "err", err)
			return
		}
		slog.Debug("Camera stream released", "handle", h.id)
	})
}

// Controller acquires and releases camera streams. It holds at most one open
// handle: a new acquisition first releases the previous one.
type Controller struct {
	devices MediaDevices

	mu      sync.Mutex
	current *Handle
}

// NewController creates a controller over a media device
func NewController(devices MediaDevices) *Controller {
	return &Controller{devices: devices}
}

// Acquire opens a stream. It is never retried; callers re-invoke it explicitly.
func (c *Controller) Acquire(ctx context.Context, constraints Constraints) (*Handle, error) {
	if !c.devices.SecureContext() {
		return nil, &AcquisitionError{Kind: InsecureContext}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.release()
		c.current = nil
	}

	constraints = constraints.withDefaults()
	stream, err := c.devices.GetUserMedia(ctx, constraints)
	if err != nil {
		acqErr := classify(err)
		slog.Error("Error accessing camera", "kind", acqErr.Kind.String(), "err", err)
		return nil, acqErr
	}

	h := &Handle{id: uuid.New(), stream: stream}
	c.current = h

	slog.Info("Camera stream acquired",
		"handle", h.id,
		"facing", constraints.FacingMode,
		"resolution_hint", fmt.Sprintf("%dx%d", constraints.Width, constraints.Height),
	)
	return h, nil
}

// Release closes the stream behind a handle. Releasing nil or an already
// released handle is a no-op.
func (c *Controller) Release(h *Handle) {
	if h == nil {
		return
	}
	h.release()

	c.mu.Lock()
	if c.current == h {
		c.current = nil
	}
	c.mu.Unlock()
}

// Current returns the open handle, if any
func (c *Controller) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
