package upload

import "fmt"

// ErrorKind is the category a failed submission keeps for display
type ErrorKind int

const (
	Unauthenticated ErrorKind = iota
	ServerRejected
	NetworkError
)

func (k ErrorKind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case ServerRejected:
		return "server_rejected"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; they match any SubmissionError of the same kind.
var (
	ErrUnauthenticated = &SubmissionError{Kind: Unauthenticated}
	ErrServerRejected  = &SubmissionError{Kind: ServerRejected}
	ErrNetwork         = &SubmissionError{Kind: NetworkError}
)

const genericFailureMessage = "Failed to upload the scan. Please try again."

// SubmissionError is the reason a submission ended in Failed
type SubmissionError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool {
	t, ok := target.(*SubmissionError)
	return ok && t.Kind == e.Kind
}

// UserMessage is the text shown to the user: the server's own message when it
// sent one, otherwise a fallback for the kind.
func (e *SubmissionError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case Unauthenticated:
		return "Your session has expired. Please sign in again."
	case NetworkError:
		return "Could not reach the document service. Check your connection and try again."
	default:
		return genericFailureMessage
	}
}
