package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/pagescan/internal/camera"
	"github.com/lehigh-university-libraries/pagescan/internal/capture"
	"github.com/lehigh-university-libraries/pagescan/internal/models"
)

const (
	EnvCameraDriver       = "PAGESCAN_CAMERA_DRIVER"
	EnvCameraURL          = "PAGESCAN_CAMERA_URL"
	EnvCameraDir          = "PAGESCAN_CAMERA_DIR"
	EnvCameraFacing       = "PAGESCAN_CAMERA_FACING"
	EnvCameraWidth        = "PAGESCAN_CAMERA_WIDTH"
	EnvCameraHeight       = "PAGESCAN_CAMERA_HEIGHT"
	EnvCameraPollInterval = "PAGESCAN_CAMERA_POLL_INTERVAL"

	EnvCaptureEncoding  = "PAGESCAN_CAPTURE_ENCODING"
	EnvCaptureQuality   = "PAGESCAN_CAPTURE_QUALITY"
	EnvCaptureMaxWidth  = "PAGESCAN_CAPTURE_MAX_WIDTH"
	EnvCaptureMaxHeight = "PAGESCAN_CAPTURE_MAX_HEIGHT"
)

const (
	DriverHTTP = "http"
	DriverDir  = "dir"
)

// CameraConfig selects and tunes the camera source
type CameraConfig struct {
	// Driver is "http" (snapshot URL) or "dir" (replay image files)
	Driver       string `yaml:"driver" toml:"driver"`
	URL          string `yaml:"url" toml:"url"`
	Dir          string `yaml:"dir" toml:"dir"`
	Facing       string `yaml:"facing" toml:"facing"`
	Width        int    `yaml:"width" toml:"width"`
	Height       int    `yaml:"height" toml:"height"`
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"`

	pollIntervalVal time.Duration
}

func (c *CameraConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *CameraConfig) Merge(overlay *CameraConfig) {
	if overlay.Driver != "" {
		c.Driver = overlay.Driver
	}
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.Facing != "" {
		c.Facing = overlay.Facing
	}
	if overlay.Width != 0 {
		c.Width = overlay.Width
	}
	if overlay.Height != 0 {
		c.Height = overlay.Height
	}
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
}

func (c *CameraConfig) loadDefaults() {
	if c.Driver == "" {
		c.Driver = DriverHTTP
	}
	if c.URL == "" {
		c.URL = "http://localhost:8080/shot.jpg"
	}
	if c.Facing == "" {
		c.Facing = camera.FacingEnvironment
	}
	if c.Width == 0 {
		c.Width = camera.DefaultWidth
	}
	if c.Height == 0 {
		c.Height = camera.DefaultHeight
	}
	if c.PollInterval == "" {
		c.PollInterval = "200ms"
	}
}

func (c *CameraConfig) loadEnv() error {
	if v := os.Getenv(EnvCameraDriver); v != "" {
		c.Driver = v
	}
	if v := os.Getenv(EnvCameraURL); v != "" {
		c.URL = v
	}
	if v := os.Getenv(EnvCameraDir); v != "" {
		c.Dir = v
	}
	if v := os.Getenv(EnvCameraFacing); v != "" {
		c.Facing = v
	}
	if v := os.Getenv(EnvCameraWidth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCameraWidth, err)
		}
		c.Width = n
	}
	if v := os.Getenv(EnvCameraHeight); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCameraHeight, err)
		}
		c.Height = n
	}
	if v := os.Getenv(EnvCameraPollInterval); v != "" {
		c.PollInterval = v
	}
	return nil
}

func (c *CameraConfig) validate() error {
	switch c.Driver {
	case DriverHTTP:
		if c.URL == "" {
			return fmt.Errorf("url required for the http driver")
		}
	case DriverDir:
		if c.Dir == "" {
			return fmt.Errorf("dir required for the dir driver")
		}
	default:
		return fmt.Errorf("unsupported driver: %q", c.Driver)
	}

	switch c.Facing {
	case camera.FacingEnvironment, camera.FacingUser:
	default:
		return fmt.Errorf("facing must be %q or %q, got %q", camera.FacingEnvironment, camera.FacingUser, c.Facing)
	}

	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}

	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return fmt.Errorf("invalid poll_interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	c.pollIntervalVal = d
	return nil
}

func (c *CameraConfig) PollIntervalDuration() time.Duration {
	return c.pollIntervalVal
}

// Constraints are the acquisition hints sent to the device
func (c *CameraConfig) Constraints() camera.Constraints {
	return camera.Constraints{FacingMode: c.Facing, Width: c.Width, Height: c.Height}
}

// Devices builds the configured media device
func (c *CameraConfig) Devices() camera.MediaDevices {
	if c.Driver == DriverDir {
		return camera.NewDirCamera(c.Dir)
	}
	return camera.NewHTTPCamera(c.URL, c.pollIntervalVal)
}

// CaptureConfig sets how frames are encoded into pages
type CaptureConfig struct {
	Encoding string `yaml:"encoding" toml:"encoding"`
	Quality  int    `yaml:"quality" toml:"quality"`
	// MaxWidth and MaxHeight scale down larger frames; zero keeps the native size
	MaxWidth  int `yaml:"max_width" toml:"max_width"`
	MaxHeight int `yaml:"max_height" toml:"max_height"`
}

func (c *CaptureConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *CaptureConfig) Merge(overlay *CaptureConfig) {
	if overlay.Encoding != "" {
		c.Encoding = overlay.Encoding
	}
	if overlay.Quality != 0 {
		c.Quality = overlay.Quality
	}
	if overlay.MaxWidth != 0 {
		c.MaxWidth = overlay.MaxWidth
	}
	if overlay.MaxHeight != 0 {
		c.MaxHeight = overlay.MaxHeight
	}
}

func (c *CaptureConfig) loadDefaults() {
	if c.Encoding == "" {
		c.Encoding = string(models.FormatJPEG)
	}
	if c.Quality == 0 {
		c.Quality = capture.DefaultJPEGQuality
	}
}

func (c *CaptureConfig) loadEnv() error {
	if v := os.Getenv(EnvCaptureEncoding); v != "" {
		c.Encoding = v
	}
	if v := os.Getenv(EnvCaptureQuality); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCaptureQuality, err)
		}
		c.Quality = n
	}
	for env, dst := range map[string]*int{EnvCaptureMaxWidth: &c.MaxWidth, EnvCaptureMaxHeight: &c.MaxHeight} {
		if v := os.Getenv(env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env, err)
			}
			*dst = n
		}
	}
	return nil
}

func (c *CaptureConfig) validate() error {
	if c.MaxWidth < 0 || c.MaxHeight < 0 {
		return fmt.Errorf("max size must not be negative, got %dx%d", c.MaxWidth, c.MaxHeight)
	}
	_, err := c.Capturer()
	return err
}

// Capturer builds the frame capturer for these settings
func (c *CaptureConfig) Capturer() (*capture.Capturer, error) {
	format, err := models.ParseFormat(c.Encoding)
	if err != nil {
		return nil, err
	}
	capturer, err := capture.New(format, c.Quality)
	if err != nil {
		return nil, err
	}
	return capturer.WithMaxSize(c.MaxWidth, c.MaxHeight), nil
}
