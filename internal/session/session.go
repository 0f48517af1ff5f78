// Package session owns one multi-page capture: the camera stream, the page
// buffer and the hand-off to the upload coordinator.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/pagescan/internal/buffer"
	"github.com/lehigh-university-libraries/pagescan/internal/camera"
	"github.com/lehigh-university-libraries/pagescan/internal/capture"
	"github.com/lehigh-university-libraries/pagescan/internal/models"
	"github.com/lehigh-university-libraries/pagescan/internal/upload"
)

// Submitter hands a finished document to the document store
type Submitter interface {
	SubmitObserved(ctx context.Context, doc models.Document, observe upload.Observer) upload.Result
}

// Options configure a new session
type Options struct {
	Constraints camera.Constraints
	Name        string
	Now         func() time.Time
}

// Session is a single capture flow. Operations are serialised; a trigger that
// arrives while a blocking operation is outstanding fails with ErrBusy.
type Session struct {
	id          uuid.UUID
	createdAt   time.Time
	controller  *camera.Controller
	capturer    *capture.Capturer
	submitter   Submitter
	constraints camera.Constraints
	now         func() time.Time
	pages       *buffer.PageBuffer

	mu         sync.Mutex
	state      State
	handle     *camera.Handle
	lastErr    error
	lastResult upload.Result
	closed     bool
}

// New creates an idle session
func New(controller *camera.Controller, capturer *capture.Capturer, submitter Submitter, opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Session{
		id:          uuid.New(),
		createdAt:   now(),
		controller:  controller,
		capturer:    capturer,
		submitter:   submitter,
		constraints: opts.Constraints,
		now:         now,
		pages:       buffer.New(),
		state:       Idle,
	}
	s.pages.Rename(opts.Name)
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the most recent acquisition, capture or submission failure
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastResult is the outcome of the most recent Finish
func (s *Session) LastResult() upload.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// setState must be called with mu held
func (s *Session) setState(to State) error {
	if s.state == to {
		return nil
	}
	if !canTransition(s.state, to) {
		return &TransitionError{From: s.state, To: to}
	}
	slog.Debug("Session state changed", "session_id", s.id, "from", s.state, "to", to)
	s.state = to
	return nil
}

// guard must be called with mu held
func (s *Session) guard() error {
	if s.closed {
		return ErrClosed
	}
	if s.state == Acquiring || s.state.Submitting() {
		return ErrBusy
	}
	return nil
}

// StartCamera acquires the camera. It is a no-op when the camera is already
// live. On failure the session returns to Idle and keeps the error.
func (s *Session) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	if err := s.guard(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state == Live {
		s.mu.Unlock()
		return nil
	}
	if err := s.setState(Acquiring); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lastErr = nil
	s.mu.Unlock()

	h, err := s.controller.Acquire(ctx, s.constraints)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.controller.Release(h)
		return ErrClosed
	}
	if err != nil {
		s.lastErr = err
		s.state = Idle
		slog.Warn("Camera could not be started", "session_id", s.id, "err", err)
		return err
	}
	s.handle = h
	s.state = Live
	slog.Info("Camera started", "session_id", s.id)
	return nil
}

// StopCamera releases the stream and moves a live session to review
func (s *Session) StopCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state == Acquiring {
		return ErrBusy
	}
	s.releaseStream()
	if s.state == Live {
		return s.setState(Reviewing)
	}
	return nil
}

// releaseStream must be called with mu held
func (s *Session) releaseStream() {
	if s.handle == nil {
		return
	}
	s.controller.Release(s.handle)
	s.handle = nil
}

// Capture appends the current frame as a new page
func (s *Session) Capture() (models.PageImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return models.PageImage{}, err
	}
	if s.state != Live {
		return models.PageImage{}, capture.ErrStreamNotReady
	}

	page, err := s.capturer.Capture(s.handle)
	if err != nil {
		s.lastErr = err
		return models.PageImage{}, err
	}
	s.pages.Append(page)
	slog.Info("Page captured", "session_id", s.id, "pages", s.pages.Len(), "bytes", page.SizeBytes())
	return page, nil
}

// RemoveAt deletes the page at a 0-based index
func (s *Session) RemoveAt(i int) (models.PageImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return models.PageImage{}, err
	}
	page, err := s.pages.RemoveAt(i)
	if err != nil {
		slog.Error("Page removal rejected", "session_id", s.id, "index", i, "err", err)
		return models.PageImage{}, err
	}
	return page, nil
}

// Undo removes the most recent page. Undo on an empty session does nothing.
func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return false, err
	}
	_, ok := s.pages.RemoveLast()
	return ok, nil
}

// Rename sets the document name used by the next Finish
func (s *Session) Rename(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return err
	}
	s.pages.Rename(name)
	return nil
}

// Page returns the page at a 0-based index
func (s *Session) Page(i int) (models.PageImage, error) {
	return s.pages.At(i)
}

// Finish releases the camera and submits the pages in order. The returned
// error is the submission failure, if any; the result carries the scan id.
func (s *Session) Finish(ctx context.Context) (upload.Result, error) {
	s.mu.Lock()
	if err := s.guard(); err != nil {
		s.mu.Unlock()
		return upload.Result{}, err
	}
	if s.pages.Len() == 0 {
		s.mu.Unlock()
		return upload.Result{}, ErrNoPages
	}
	s.releaseStream()
	if err := s.setState(Packaging); err != nil {
		s.mu.Unlock()
		return upload.Result{}, err
	}
	doc := models.Document{
		Name:  models.ResolveName(s.pages.Name(), s.now()),
		Pages: s.pages.Snapshot(),
	}
	s.lastErr = nil
	s.mu.Unlock()

	slog.Info("Finishing document", "session_id", s.id, "name", doc.Name, "pages", len(doc.Pages))
	result := s.submitter.SubmitObserved(ctx, doc, s.observe)

	s.mu.Lock()
	defer s.mu.Unlock()

	final := Failed
	if result.Succeeded() {
		final = Succeeded
	}
	if err := s.setState(final); err != nil {
		// the coordinator skipped a phase; force the terminal state
		slog.Warn("Unexpected submission phase order", "session_id", s.id, "err", err)
		s.state = final
	}
	s.lastResult = result
	s.lastErr = result.Err
	return result, result.Err
}

func (s *Session) observe(p upload.Phase) {
	to, ok := stateForPhase(p)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setState(to); err != nil {
		slog.Warn("Ignoring submission phase", "session_id", s.id, "phase", p, "err", err)
	}
}

// ClearAfterSuccess empties the buffer once the store accepted the document
func (s *Session) ClearAfterSuccess() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != Succeeded {
		return &TransitionError{From: s.state, To: Idle}
	}
	s.pages.Clear()
	s.pages.Rename("")
	return s.setState(Idle)
}

// Close releases the camera. It is safe to call more than once and while a
// submission is in flight; the submission still runs to completion.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.releaseStream()
	s.closed = true
	slog.Info("Session closed", "session_id", s.id, "state", s.state)
	return nil
}

// Snapshot is a point-in-time view of a session
type Snapshot struct {
	ID         uuid.UUID            `json:"id"`
	State      State                `json:"state"`
	Name       string               `json:"name"`
	CameraLive bool                 `json:"camera_live"`
	Pages      []models.PageSummary `json:"pages"`
	TotalBytes int64                `json:"total_bytes"`
	ScanID     string               `json:"scan_id,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	Closed     bool                 `json:"closed,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		Name:       s.pages.Name(),
		CameraLive: s.handle.Live(),
		Pages:      models.Summarize(s.pages.Snapshot()),
		TotalBytes: s.pages.TotalBytes(),
		ScanID:     s.lastResult.ScanID,
		CreatedAt:  s.createdAt,
		Closed:     s.closed,
	}
	if s.lastErr != nil {
		snap.LastError = UserMessage(s.lastErr)
	}
	return snap
}

// UserMessage renders an error for display, using the typed error's own
// message where it has one.
func UserMessage(err error) string {
	var acqErr *camera.AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.UserMessage()
	}
	var subErr *upload.SubmissionError
	if errors.As(err, &subErr) {
		return subErr.UserMessage()
	}
	return err.Error()
}
