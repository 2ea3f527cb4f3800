package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/mgsv-tools/savedump/internal/document"
	"github.com/mgsv-tools/savedump/internal/models"
	"github.com/mgsv-tools/savedump/internal/parser"
	"github.com/mgsv-tools/savedump/internal/session"
	"github.com/mgsv-tools/savedump/internal/storage"
)

// mockSessionManager is an in-memory SessionManager for handler tests.
type mockSessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*models.DecodeSession
	docs      map[string]*document.Value
	pages     map[string]*models.FieldPage
	lastQuery parser.FieldQuery
	started   []startCall
	touched   []string
}

type startCall struct {
	FileID, Path, Kind string
	FormatVersion      int
}

func newMockSessionManager() *mockSessionManager {
	return &mockSessionManager{
		sessions: make(map[string]*models.DecodeSession),
		docs:     make(map[string]*document.Value),
		pages:    make(map[string]*models.FieldPage),
	}
}

// addSession registers a session in the given status. doc and page are only
// served while the status is complete.
func (m *mockSessionManager) addSession(id string, status models.SessionStatus, doc *document.Value, page *models.FieldPage) *models.DecodeSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := models.NewDecodeSession(id, "file-"+id, parser.KindSave, 7)
	s.Status = status
	m.sessions[id] = s
	if doc != nil {
		m.docs[id] = doc
	}
	if page != nil {
		m.pages[id] = page
	}
	return s
}

func (m *mockSessionManager) StartSession(fileID, filePath, kind string, formatVersion int) (*models.DecodeSession, error) {
	if kind != parser.KindAuto {
		if _, err := parser.GetGlobalRegistry().GetParserByName(kind); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = append(m.started, startCall{fileID, filePath, kind, formatVersion})
	s := models.NewDecodeSession(fmt.Sprintf("session-%d", len(m.started)), fileID, kind, formatVersion)
	m.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *mockSessionManager) GetSession(id string) (*models.DecodeSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

func (m *mockSessionManager) ready(id string) error {
	s, ok := m.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	if s.Status != models.SessionStatusComplete {
		return fmt.Errorf("%w: status is %s", session.ErrSessionNotReady, s.Status)
	}
	return nil
}

func (m *mockSessionManager) GetDocument(id string) (*document.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(id); err != nil {
		return nil, err
	}
	return m.docs[id], nil
}

func (m *mockSessionManager) QueryFields(ctx context.Context, id string, q parser.FieldQuery) (*models.FieldPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(id); err != nil {
		return nil, err
	}
	m.lastQuery = q
	page, ok := m.pages[id]
	if !ok {
		return nil, session.ErrFieldIndexUnavailable
	}
	return page, nil
}

func (m *mockSessionManager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[id]
	if ok {
		m.touched = append(m.touched, id)
	}
	return ok
}

func (m *mockSessionManager) DeleteSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

func (m *mockSessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

var _ SessionManager = (*mockSessionManager)(nil)

// newTestServer wires the real routes and error handler around store and mgr.
func newTestServer(store storage.Store, mgr SessionManager) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:                store,
		SessionMgr:           mgr,
		DefaultFormatVersion: 8,
		Version:              "test",
	}), true)
	return e
}

func doRequest(e *echo.Echo, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, e *echo.Echo, method, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return doRequest(e, method, target, body, echo.MIMEApplicationJSON)
}

// decodeAPIError asserts the response is an APIError with the given status and code.
func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) APIError {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	require.Equal(t, code, apiErr.Code)
	return apiErr
}
