// Package camera owns the camera stream lifecycle: secure-context checks,
// acquisition through a media device, error classification and idempotent release.
package camera

import (
	"errors"
	"fmt"
)

// Errors returned by MediaDevices implementations, named after the media API failures
// they correspond to. The Controller classifies them into an AcquisitionError.
var (
	ErrNotAllowed  = errors.New("camera permission denied")
	ErrNotFound    = errors.New("no camera found")
	ErrNotReadable = errors.New("camera could not be read")
)

// Kind categorizes acquisition failures
type Kind int

const (
	PermissionDenied Kind = iota
	DeviceNotFound
	DeviceBusy
	InsecureContext
	Unknown
)

// String returns a human-readable representation of the kind
func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case DeviceNotFound:
		return "device_not_found"
	case DeviceBusy:
		return "device_busy"
	case InsecureContext:
		return "insecure_context"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is against an AcquisitionError
var (
	ErrPermissionDenied = &AcquisitionError{Kind: PermissionDenied}
	ErrDeviceNotFound   = &AcquisitionError{Kind: DeviceNotFound}
	ErrDeviceBusy       = &AcquisitionError{Kind: DeviceBusy}
	ErrInsecureContext  = &AcquisitionError{Kind: InsecureContext}
	ErrUnknown          = &AcquisitionError{Kind: Unknown}
)

// AcquisitionError is the typed result of a failed Acquire
type AcquisitionError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AcquisitionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("camera acquisition failed (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("camera acquisition failed (%s)", e.Kind)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Is matches any AcquisitionError of the same kind
func (e *AcquisitionError) Is(target error) bool {
	t, ok := target.(*AcquisitionError)
	return ok && t.Kind == e.Kind
}

// UserMessage is the text shown next to the Retry control
func (e *AcquisitionError) UserMessage() string {
	switch e.Kind {
	case PermissionDenied:
		return "Unable to access camera. Please allow camera permission and try again."
	case DeviceNotFound:
		return "Unable to access camera. No camera found on this device."
	case DeviceBusy:
		return "Unable to access camera. Camera is already in use by another app."
	case InsecureContext:
		return "Secure connection required: camera access needs HTTPS or localhost."
	default:
		if e.Message != "" {
			return "Unable to access camera. " + e.Message
		}
		return "Unable to access camera. Please check permissions and try again."
	}
}

func classify(err error) *AcquisitionError {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr
	}

	switch {
	case errors.Is(err, ErrNotAllowed):
		return &AcquisitionError{Kind: PermissionDenied, Err: err}
	case errors.Is(err, ErrNotFound):
		return &AcquisitionError{Kind: DeviceNotFound, Err: err}
	case errors.Is(err, ErrNotReadable):
		return &AcquisitionError{Kind: DeviceBusy, Err: err}
	default:
		return &AcquisitionError{Kind: Unknown, Message: err.Error(), Err: err}
	}
}
