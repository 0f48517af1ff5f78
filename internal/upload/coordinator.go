// Package upload packages a finished document into a multipart submission and
// hands it to the document store.
package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/docker/go-units"

	"github.com/lehigh-university-libraries/pagescan/internal/compress"
	"github.com/lehigh-university-libraries/pagescan/internal/identity"
	"github.com/lehigh-university-libraries/pagescan/internal/models"
	"github.com/lehigh-university-libraries/pagescan/internal/store"
)

// Phase of a single submission
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCredentialCheck
	PhasePackaging
	PhaseSending
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCredentialCheck:
		return "credential_check"
	case PhasePackaging:
		return "packaging"
	case PhaseSending:
		return "sending"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer is told about every phase a submission enters
type Observer func(Phase)

// Result of a submission. Err is a *SubmissionError when Phase is PhaseFailed.
type Result struct {
	Phase          Phase
	ScanID         string
	Err            error
	Reauthenticate bool
}

// Succeeded reports whether the store accepted the document
func (r Result) Succeeded() bool { return r.Phase == PhaseSucceeded }

// SessionGuard yields a usable credential or fails
type SessionGuard interface {
	RequireSession(ctx context.Context) (identity.Credential, error)
}

// Sender delivers an encoded body to the document store
type Sender interface {
	Submit(ctx context.Context, token string, body io.Reader, contentType string) (string, error)
}

// Coordinator runs submissions. It never touches the caller's page buffer.
type Coordinator struct {
	guard  SessionGuard
	sender Sender
	policy compress.Policy
}

// NewCoordinator creates a coordinator
func NewCoordinator(guard SessionGuard, sender Sender, policy compress.Policy) *Coordinator {
	return &Coordinator{guard: guard, sender: sender, policy: policy}
}

// Submit runs one submission without an observer
func (c *Coordinator) Submit(ctx context.Context, doc models.Document) Result {
	return c.SubmitObserved(ctx, doc, nil)
}

// SubmitObserved runs one submission and reports each phase to observe. The
// request is sent once; retrying is up to the caller.
func (c *Coordinator) SubmitObserved(ctx context.Context, doc models.Document, observe Observer) Result {
	enter := func(p Phase) {
		if observe != nil {
			observe(p)
		}
	}
	fail := func(err *SubmissionError) Result {
		enter(PhaseFailed)
		slog.Error("Submission failed", "name", doc.Name, "kind", err.Kind, "err", err)
		return Result{Phase: PhaseFailed, Err: err, Reauthenticate: err.Kind == Unauthenticated}
	}

	enter(PhaseCredentialCheck)
	cred, err := c.guard.RequireSession(ctx)
	if err != nil {
		return fail(&SubmissionError{Kind: Unauthenticated, Err: err})
	}

	enter(PhasePackaging)
	pkg, err := BuildPackage(doc, c.policy)
	if err != nil {
		return fail(&SubmissionError{Kind: NetworkError, Err: err})
	}
	slog.Info("Packaged document", "name", doc.Name, "pages", pkg.Pages, "size", units.HumanSize(float64(len(pkg.Body))))

	enter(PhaseSending)
	scanID, err := c.sender.Submit(ctx, cred.Token, bytes.NewReader(pkg.Body), pkg.ContentType)
	if err != nil {
		return fail(classify(err))
	}

	enter(PhaseSucceeded)
	slog.Info("Submission accepted", "name", doc.Name, "scan_id", scanID)
	return Result{Phase: PhaseSucceeded, ScanID: scanID}
}

func classify(err error) *SubmissionError {
	var statusErr *store.StatusError
	switch {
	case errors.As(err, &statusErr):
		kind := ServerRejected
		if statusErr.StatusCode == http.StatusUnauthorized {
			kind = Unauthenticated
		}
		return &SubmissionError{Kind: kind, Message: statusErr.Message, StatusCode: statusErr.StatusCode, Err: err}
	case errors.Is(err, store.ErrMalformedResponse):
		return &SubmissionError{Kind: ServerRejected, Err: err}
	default:
		return &SubmissionError{Kind: NetworkError, Err: err}
	}
}
