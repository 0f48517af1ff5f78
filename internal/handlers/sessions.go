package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/pagescan/internal/session"
	"github.com/lehigh-university-libraries/pagescan/internal/upload"
)

type nameRequest struct {
	Name string `json:"name"`
}

type undoResponse struct {
	Removed bool             `json:"removed"`
	Session session.Snapshot `json:"session"`
}

type finishResponse struct {
	Phase          string           `json:"phase"`
	ScanID         string           `json:"scan_id,omitempty"`
	Error          string           `json:"error,omitempty"`
	Reauthenticate bool             `json:"reauthenticate,omitempty"`
	Session        session.Snapshot `json:"session"`
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	sess := h.newSession(req.Name)
	h.sessionStore.Add(sess)
	slog.Info("Session created", "session_id", sess.ID())
	h.writeJSONStatus(w, http.StatusCreated, sess.Snapshot())
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.List()
	snapshots := make([]session.Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		snapshots = append(snapshots, sess.Snapshot())
	}
	h.writeJSON(w, snapshots)
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, sess.Snapshot())
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessionStore.Delete(r.PathValue("id")) {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleStartCamera(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if err := sess.StartCamera(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, sess.Snapshot())
}

func (h *Handler) HandleStopCamera(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if err := sess.StopCamera(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, sess.Snapshot())
}

func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if _, err := sess.Capture(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSONStatus(w, http.StatusCreated, sess.Snapshot())
}

func (h *Handler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	removed, err := sess.Undo()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, undoResponse{Removed: removed, Session: sess.Snapshot()})
}

func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.Rename(req.Name); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, sess.Snapshot())
}

// pageIndex parses the 1-based page number in the path into a 0-based index
func (h *Handler) pageIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || n < 1 {
		h.writeError(w, "Invalid page number", http.StatusBadRequest)
		return 0, false
	}
	return n - 1, true
}

func (h *Handler) HandleGetPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	i, ok := h.pageIndex(w, r)
	if !ok {
		return
	}
	page, err := sess.Page(i)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", page.Format().MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, upload.PageFilename(i+1, page.Format())))
	w.Header().Set("Content-Length", strconv.FormatInt(page.SizeBytes(), 10))
	if _, err := w.Write(page.Bytes()); err != nil {
		slog.Error("Unable to write page", "session_id", sess.ID(), "err", err)
	}
}

func (h *Handler) HandleDeletePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	i, ok := h.pageIndex(w, r)
	if !ok {
		return
	}
	if _, err := sess.RemoveAt(i); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, sess.Snapshot())
}

// HandleFinish submits the session. The submission is not cancelled when the
// client goes away.
func (h *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	result, err := sess.Finish(context.WithoutCancel(r.Context()))
	if err != nil && result.Phase != upload.PhaseFailed {
		h.writeDomainError(w, err)
		return
	}

	resp := finishResponse{
		Phase:          result.Phase.String(),
		ScanID:         result.ScanID,
		Reauthenticate: result.Reauthenticate,
		Session:        sess.Snapshot(),
	}
	code := http.StatusOK
	if err != nil {
		resp.Error = session.UserMessage(err)
		code = MapHTTPStatus(err)
	}
	h.writeJSONStatus(w, code, resp)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if err := sess.ClearAfterSuccess(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, sess.Snapshot())
}

