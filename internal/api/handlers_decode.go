// handlers_decode.go - Decode session handlers
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mgsv-tools/savedump/internal/document"
	"github.com/mgsv-tools/savedump/internal/models"
	"github.com/mgsv-tools/savedump/internal/parser"
	"github.com/mgsv-tools/savedump/internal/session"
	"github.com/mgsv-tools/savedump/internal/storage"
)

// progressStreamTimeout bounds how long a progress stream stays open.
const progressStreamTimeout = 5 * time.Minute

// DecodeHandlerImpl implements the DecodeHandler interface
type DecodeHandlerImpl struct {
	store          storage.Store
	sessionMgr     SessionManager
	defaultVersion int
}

// NewDecodeHandler creates a new decode handler instance. defaultVersion is
// used for save files when a request does not name a format version.
func NewDecodeHandler(store storage.Store, sessionMgr SessionManager, defaultVersion int) DecodeHandler {
	return &DecodeHandlerImpl{
		store:          store,
		sessionMgr:     sessionMgr,
		defaultVersion: defaultVersion,
	}
}

// HandleStartDecode starts decoding an uploaded file
func (h *DecodeHandlerImpl) HandleStartDecode(c echo.Context) error {
	var req startDecodeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}
	if req.FormatVersion == 0 {
		req.FormatVersion = h.defaultVersion
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return storeError(err, req.FileID)
	}
	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return storeError(err, req.FileID)
	}

	if _, err := parser.GetGlobalRegistry().GetParserByName(req.Kind); err != nil && req.Kind != parser.KindAuto {
		return NewBadRequestError("unknown kind", err)
	}

	// Set before starting so a fast decode's final status is not overwritten.
	prevStatus := info.Status
	_ = h.store.SetStatus(req.FileID, storage.StatusDecoding)

	sess, err := h.sessionMgr.StartSession(req.FileID, path, req.Kind, req.FormatVersion)
	if err != nil {
		_ = h.store.SetStatus(req.FileID, prevStatus)
		if errors.Is(err, parser.ErrUnknownParser) {
			return NewBadRequestError("unknown kind", err)
		}
		return NewInternalError("failed to start session", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// FileStatusHook returns a callback that mirrors a finished session's outcome
// onto the status of the file it decoded.
func FileStatusHook(store storage.Store) func(fileID string, status models.SessionStatus) {
	return func(fileID string, status models.SessionStatus) {
		fileStatus := storage.StatusDecoded
		if status == models.SessionStatusError {
			fileStatus = storage.StatusError
		}
		_ = store.SetStatus(fileID, fileStatus)
	}
}

// HandleDecodeStatus returns the current status of a decode session
func (h *DecodeHandlerImpl) HandleDecodeStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleDecodeProgressStream streams session status via SSE until it finishes
func (h *DecodeHandlerImpl) HandleDecodeProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		h.sendSSEError(c, "session not found")
		return nil
	}
	h.sendSSEData(c, sess)
	if sess.Finished() {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.NewTimer(progressStreamTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				h.sendSSEError(c, "session not found")
				return nil
			}

			h.sendSSEData(c, sess)

			if sess.Finished() {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleGetDocument renders the decoded document in the requested format
func (h *DecodeHandlerImpl) HandleGetDocument(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	format, err := document.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError("invalid format", err)
	}

	doc, err := h.sessionMgr.GetDocument(id)
	if err != nil {
		return h.sessionError(err, id)
	}
	h.sessionMgr.TouchSession(id)

	var buf bytes.Buffer
	if err := document.Render(&buf, doc, format); err != nil {
		return NewInternalError("failed to render document", err)
	}

	if c.QueryParam("download") == "true" {
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", id+"."+format.Extension()))
	}
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

// HandleGetFields returns a page of flattened document fields
func (h *DecodeHandlerImpl) HandleGetFields(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	q := parser.FieldQuery{
		Prefix: c.QueryParam("prefix"),
		Kind:   strings.ToLower(c.QueryParam("kind")),
	}
	var err error
	if q.Limit, err = intParam(c, "limit"); err != nil {
		return err
	}
	if q.Offset, err = intParam(c, "offset"); err != nil {
		return err
	}

	page, err := h.sessionMgr.QueryFields(c.Request().Context(), id, q)
	if err != nil {
		return h.sessionError(err, id)
	}
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, page)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *DecodeHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteSession drops a session and its field index
func (h *DecodeHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.DeleteSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// sessionError maps a session manager error to an APIError. A session that
// failed to decode reports its failure instead of a generic conflict.
func (h *DecodeHandlerImpl) sessionError(err error, id string) *APIError {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return NewNotFoundError("session", id)
	case errors.Is(err, session.ErrSessionNotReady):
		if sess, ok := h.sessionMgr.GetSession(id); ok && sess.Status == models.SessionStatusError {
			return NewDecodeError(sess.Failure)
		}
		return NewConflictError("session has not finished decoding")
	case errors.Is(err, session.ErrFieldIndexUnavailable):
		return NewServiceUnavailableError("field index unavailable for this session")
	}
	return NewInternalError("session query failed", err)
}

func (h *DecodeHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *DecodeHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, NewBadRequestError(name+" must be a non-negative integer", err)
	}
	return n, nil
}

// Request/Response types

type startDecodeRequest struct {
	FileID        string `json:"fileId"`
	Kind          string `json:"kind"` // "save", "global" or "auto"
	FormatVersion int    `json:"formatVersion"`
}

func (r *startDecodeRequest) validate() error {
	if r.FileID == "" {
		return NewValidationError("fileId")
	}
	if r.FormatVersion < 0 {
		return NewValidationError("formatVersion")
	}
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	if r.Kind == "" {
		r.Kind = parser.KindAuto
	}
	return nil
}
