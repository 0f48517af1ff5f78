package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/pagescan/internal/buffer"
	"github.com/lehigh-university-libraries/pagescan/internal/camera"
	"github.com/lehigh-university-libraries/pagescan/internal/capture"
	"github.com/lehigh-university-libraries/pagescan/internal/session"
	"github.com/lehigh-university-libraries/pagescan/internal/storage"
	"github.com/lehigh-university-libraries/pagescan/internal/upload"
)

// SessionFactory builds a new capture session with the given document name
type SessionFactory func(name string) *session.Session

type Handler struct {
	sessionStore *storage.SessionStore
	newSession   SessionFactory
}

func New(store *storage.SessionStore, newSession SessionFactory) *Handler {
	return &Handler{
		sessionStore: store,
		newSession:   newSession,
	}
}

// Register adds the capture API routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/camera", h.HandleStartCamera)
	mux.HandleFunc("DELETE /api/sessions/{id}/camera", h.HandleStopCamera)
	mux.HandleFunc("POST /api/sessions/{id}/capture", h.HandleCapture)
	mux.HandleFunc("POST /api/sessions/{id}/undo", h.HandleUndo)
	mux.HandleFunc("PUT /api/sessions/{id}/name", h.HandleRename)
	mux.HandleFunc("GET /api/sessions/{id}/pages/{index}", h.HandleGetPage)
	mux.HandleFunc("DELETE /api/sessions/{id}/pages/{index}", h.HandleDeletePage)
	mux.HandleFunc("POST /api/sessions/{id}/finish", h.HandleFinish)
	mux.HandleFunc("POST /api/sessions/{id}/clear", h.HandleClear)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// writeDomainError maps err to a status and writes its user-facing message
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	h.writeError(w, session.UserMessage(err), MapHTTPStatus(err))
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

// MapHTTPStatus picks the response status for a domain error
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrIllegalTransition),
		errors.Is(err, capture.ErrStreamNotReady):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoPages):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, buffer.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, camera.ErrPermissionDenied),
		errors.Is(err, camera.ErrInsecureContext):
		return http.StatusForbidden
	case errors.Is(err, camera.ErrDeviceNotFound),
		errors.Is(err, camera.ErrDeviceBusy),
		errors.Is(err, camera.ErrUnknown):
		return http.StatusServiceUnavailable
	case errors.Is(err, upload.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, upload.ErrServerRejected),
		errors.Is(err, upload.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
