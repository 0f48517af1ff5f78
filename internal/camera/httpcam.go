package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	maxSnapshotBytes    = 20 * 1024 * 1024

	// staleIntervals is the default number of poll intervals without a good
	// snapshot after which the stream stops reporting ready
	staleIntervals = 5
)

// HTTPCamera is a network camera exposing a still-snapshot URL
type HTTPCamera struct {
	SnapshotURL  string
	PollInterval time.Duration
	// StaleAfter bounds the age of the last good snapshot. Zero means five poll intervals.
	StaleAfter time.Duration
	HTTPClient *http.Client
}

// NewHTTPCamera creates a snapshot camera driver
func NewHTTPCamera(snapshotURL string, pollInterval time.Duration) *HTTPCamera {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &HTTPCamera{
		SnapshotURL:  snapshotURL,
		PollInterval: pollInterval,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SecureContext allows https cameras and plain http only on loopback hosts
func (c *HTTPCamera) SecureContext() bool {
	u, err := url.Parse(c.SnapshotURL)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		host := u.Hostname()
		if host == "localhost" {
			return true
		}
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	default:
		return false
	}
}

// GetUserMedia fetches one snapshot to validate the camera, then keeps polling
// in the background until the stream is closed.
func (c *HTTPCamera) GetUserMedia(ctx context.Context, constraints Constraints) (Stream, error) {
	snapshotURL, err := c.snapshotURL(constraints)
	if err != nil {
		return nil, err
	}

	first, err := c.fetch(ctx, snapshotURL)
	if err != nil {
		return nil, err
	}

	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	staleAfter := c.StaleAfter
	if staleAfter <= 0 {
		staleAfter = staleIntervals * interval
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s := &httpStream{
		camera:     c,
		url:        snapshotURL,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.store(first)

	go s.poll(pollCtx)

	return s, nil
}

func (c *HTTPCamera) snapshotURL(constraints Constraints) (string, error) {
	u, err := url.Parse(c.SnapshotURL)
	if err != nil {
		return "", fmt.Errorf("invalid camera url: %w", err)
	}
	q := u.Query()
	if constraints.Width > 0 {
		q.Set("width", strconv.Itoa(constraints.Width))
	}
	if constraints.Height > 0 {
		q.Set("height", strconv.Itoa(constraints.Height))
	}
	if constraints.FacingMode != "" {
		q.Set("facing", constraints.FacingMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetch downloads and decodes one snapshot
func (c *HTTPCamera) fetch(ctx context.Context, snapshotURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		var dnsErr *net.DNSError
		var opErr *net.OpError
		if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: camera returned status %d", ErrNotAllowed, resp.StatusCode)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: camera returned status %d", ErrNotFound, resp.StatusCode)
	case http.StatusConflict, http.StatusLocked, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: camera returned status %d", ErrNotReadable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrNotReadable)
	}

	return decodeFrame(data)
}

type httpStream struct {
	camera     *HTTPCamera
	url        string
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	cancel     context.CancelFunc
	done       chan struct{}

	mu       sync.RWMutex
	latest   image.Image
	lastGood time.Time
	failures int
	warned   bool
	once     sync.Once
}

func (s *httpStream) store(img image.Image) {
	s.mu.Lock()
	s.latest = img
	s.lastGood = s.now()
	if s.warned && img != nil {
		slog.Info("Camera snapshots recovered", "failed_polls", s.failures)
	}
	s.failures = 0
	s.warned = false
	s.mu.Unlock()
}

func (s *httpStream) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if !s.warned && s.now().Sub(s.lastGood) > s.staleAfter {
		s.warned = true
		slog.Warn("Camera stopped producing snapshots", "url", s.url, "failed_polls", s.failures, "err", err)
		return
	}
	slog.Debug("Snapshot poll failed", "err", err)
}

// fresh reports whether the last good snapshot is recent enough to capture. Callers hold mu.
func (s *httpStream) fresh() bool {
	return s.latest != nil && s.now().Sub(s.lastGood) <= s.staleAfter
}

func (s *httpStream) poll(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, err := s.camera.fetch(ctx, s.url)
			if err != nil {
				if ctx.Err() == nil {
					s.recordFailure(err)
				}
				continue
			}
			s.store(img)
		}
	}
}

// Ready is false once the camera has stopped answering for longer than staleAfter
func (s *httpStream) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fresh()
}

func (s *httpStream) CurrentFrame() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.fresh() {
		return nil, false
	}
	return s.latest, true
}

func (s *httpStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.store(nil)
	})
	return nil
}
