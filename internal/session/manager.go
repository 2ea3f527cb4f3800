package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mgsv-tools/savedump/internal/document"
	"github.com/mgsv-tools/savedump/internal/models"
	"github.com/mgsv-tools/savedump/internal/parser"
)

// DefaultMaxSessions limits retained sessions to prevent memory exhaustion
const DefaultMaxSessions = 10

// SessionMaxAge is how long to keep finished sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// CodeFieldIndexUnavailable is recorded when the document decoded but could not be indexed.
const CodeFieldIndexUnavailable = "FieldIndexUnavailable"

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionNotReady       = errors.New("session not complete")
	ErrFieldIndexUnavailable = errors.New("field index unavailable")
)

// Config configures a Manager. Zero values fall back to defaults.
type Config struct {
	TempDir              string
	MaxSessions          int
	MaxConcurrentDecodes int
	FieldStore           parser.FieldStoreOptions
	Logger               *slog.Logger
}

// FinishFunc is called once a session reaches a terminal status.
type FinishFunc func(fileID string, status models.SessionStatus)

// Manager runs decode sessions in the background and keeps their results.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	registry    *parser.Registry
	tempDir     string
	maxSessions int
	fieldOpts   parser.FieldStoreOptions
	decodeSem   chan struct{}
	logger      *slog.Logger
	onFinish    FinishFunc
}

// SessionState holds the session metadata, the decoded document and its field index.
type SessionState struct {
	Session      *models.DecodeSession
	Document     *document.Value
	Fields       *parser.FieldStore
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.MaxConcurrentDecodes <= 0 {
		cfg.MaxConcurrentDecodes = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	os.MkdirAll(cfg.TempDir, 0755)

	return &Manager{
		sessions:    make(map[string]*SessionState),
		registry:    parser.GetGlobalRegistry(),
		tempDir:     cfg.TempDir,
		maxSessions: cfg.MaxSessions,
		fieldOpts:   cfg.FieldStore,
		decodeSem:   make(chan struct{}, cfg.MaxConcurrentDecodes),
		logger:      cfg.Logger.With("component", "session"),
	}
}

// OnFinish registers a callback for terminal session statuses.
func (m *Manager) OnFinish(fn FinishFunc) {
	m.mu.Lock()
	m.onFinish = fn
	m.mu.Unlock()
}

// StartSession begins decoding the file at filePath. kind is a parser name or
// parser.KindAuto; formatVersion only matters for saves.
func (m *Manager) StartSession(fileID, filePath, kind string, formatVersion int) (*models.DecodeSession, error) {
	if kind == "" {
		kind = parser.KindAuto
	}
	if kind != parser.KindAuto {
		if _, err := m.registry.GetParserByName(kind); err != nil {
			return nil, err
		}
	}

	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()
	session := models.NewDecodeSession(sessionID, fileID, kind, formatVersion)

	snapshot := copySession(session)

	m.mu.Lock()
	m.sessions[sessionID] = &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}
	m.mu.Unlock()

	go m.runDecode(sessionID, filePath, kind, formatVersion)

	return snapshot, nil
}

func (m *Manager) runDecode(sessionID, filePath, kind string, formatVersion int) {
	log := m.logger.With("session", shortID(sessionID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("decode panicked", "panic", r)
			m.fail(sessionID, &models.DecodeFailure{Reason: fmt.Sprintf("decode panicked: %v", r)})
		}
	}()

	m.decodeSem <- struct{}{}
	defer func() { <-m.decodeSem }()

	start := time.Now()
	m.update(sessionID, func(s *models.DecodeSession) {
		s.Status = models.SessionStatusDecoding
		s.StartTime = start.UnixMilli()
		s.Progress = 10
	})

	raw, err := os.ReadFile(filePath)
	if err != nil {
		log.Error("reading file failed", "path", filePath, "error", err)
		m.fail(sessionID, &models.DecodeFailure{Step: "read", Reason: err.Error()})
		return
	}
	log.Info("decoding file", "path", filePath, "bytes", len(raw), "kind", kind, "formatVersion", formatVersion)
	m.update(sessionID, func(s *models.DecodeSession) { s.Progress = 30 })

	res, err := parser.DecodeFile(raw, kind, parser.Options{FormatVersion: formatVersion, Logger: log})
	if err != nil {
		log.Warn("decode failed", "error", err)
		m.fail(sessionID, failureFrom(err))
		return
	}
	m.update(sessionID, func(s *models.DecodeSession) {
		s.Progress = 60
		s.ParserName = res.Kind
	})

	diagnostics := res.Diagnostics
	fields, err := m.indexFields(sessionID, res.Document)
	if err != nil {
		log.Warn("field index unavailable", "error", err)
		diagnostics = append(diagnostics, models.Diagnostic{
			Code:    CodeFieldIndexUnavailable,
			Message: err.Error(),
		})
	}

	end := time.Now()
	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	if !ok {
		// Deleted while decoding.
		m.mu.Unlock()
		if fields != nil {
			fields.Close()
		}
		return
	}
	state.Document = res.Document
	state.Fields = fields
	s := state.Session
	s.Status = models.SessionStatusComplete
	s.Progress = 100
	s.Diagnostics = append(s.Diagnostics, diagnostics...)
	if fields != nil {
		s.FieldCount = fields.Len()
	}
	s.EndTime = end.UnixMilli()
	s.ProcessingTimeMs = end.Sub(start).Milliseconds()
	fileID, fieldCount, onFinish := s.FileID, s.FieldCount, m.onFinish
	m.mu.Unlock()

	log.Info("decode complete", "parser", res.Kind, "fields", fieldCount,
		"diagnostics", len(diagnostics), "elapsed", end.Sub(start).Round(time.Millisecond))
	if onFinish != nil {
		onFinish(fileID, models.SessionStatusComplete)
	}
}

func (m *Manager) indexFields(sessionID string, doc *document.Value) (*parser.FieldStore, error) {
	fields, err := parser.NewFieldStore(m.tempDir, sessionID, m.fieldOpts)
	if err != nil {
		return nil, err
	}
	if _, err := fields.Index(context.Background(), doc); err != nil {
		fields.Close()
		return nil, err
	}
	return fields, nil
}

func failureFrom(err error) *models.DecodeFailure {
	var de *parser.DecodeError
	if errors.As(err, &de) {
		return &models.DecodeFailure{Step: de.Step, Offset: de.Offset, Reason: de.Err.Error()}
	}
	return &models.DecodeFailure{Reason: err.Error()}
}

func (m *Manager) update(sessionID string, fn func(*models.DecodeSession)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[sessionID]; ok {
		fn(state.Session)
	}
}

func (m *Manager) fail(sessionID string, failure *models.DecodeFailure) {
	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	state.Session.Status = models.SessionStatusError
	state.Session.Failure = failure
	state.Session.EndTime = time.Now().UnixMilli()
	fileID, onFinish := state.Session.FileID, m.onFinish
	m.mu.Unlock()

	if onFinish != nil {
		onFinish(fileID, models.SessionStatusError)
	}
}

// cleanupOldSessionsIfNeeded removes the least recently used finished
// sessions when at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.maxSessions {
		return
	}

	var finished []string
	for id, state := range m.sessions {
		if state.Session.Finished() {
			finished = append(finished, id)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return m.sessions[finished[i]].LastAccessed.Before(m.sessions[finished[j]].LastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	for _, id := range finished {
		if toFree == 0 {
			break
		}
		m.removeLocked(id)
		toFree--
		m.logger.Info("evicted session to stay under limit", "session", shortID(id))
	}
}

func (m *Manager) removeLocked(id string) {
	if state, ok := m.sessions[id]; ok {
		if state.Fields != nil {
			state.Fields.Close()
		}
		delete(m.sessions, id)
	}
}

// CleanupOldSessions removes finished sessions not accessed within maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, state := range m.sessions {
		if !state.Session.Finished() {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) || state.LastAccessed.After(cutoff) {
			continue
		}
		m.removeLocked(id)
		removed++
		m.logger.Info("cleaned up aged session", "session", shortID(id),
			"idle", now.Sub(state.LastAccessed).Round(time.Second))
	}
	return removed
}

// GetSession returns a snapshot of a session by ID.
func (m *Manager) GetSession(id string) (*models.DecodeSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return copySession(state.Session), true
}

// GetDocument returns the decoded document of a complete session.
func (m *Manager) GetDocument(id string) (*document.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if state.Session.Status != models.SessionStatusComplete {
		return nil, fmt.Errorf("%w: status is %s", ErrSessionNotReady, state.Session.Status)
	}
	return state.Document, nil
}

// QueryFields pages through the flattened fields of a complete session.
func (m *Manager) QueryFields(ctx context.Context, id string, q parser.FieldQuery) (*models.FieldPage, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.RUnlock()
		return nil, ErrSessionNotFound
	}
	status, fields := state.Session.Status, state.Fields
	m.mu.RUnlock()

	if status != models.SessionStatusComplete {
		return nil, fmt.Errorf("%w: status is %s", ErrSessionNotReady, status)
	}
	if fields == nil {
		return nil, ErrFieldIndexUnavailable
	}

	rows, total, err := fields.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = parser.DefaultFieldPageSize
	}
	if limit > parser.MaxFieldPageSize {
		limit = parser.MaxFieldPageSize
	}
	return &models.FieldPage{Rows: rows, Total: total, Limit: limit, Offset: q.Offset}, nil
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// DeleteSession drops a session and its field index. A running decode
// finishes in the background and its result is discarded.
func (m *Manager) DeleteSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	m.removeLocked(id)
	return true
}

// Count returns the number of retained sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close releases every session's resources.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sessions {
		m.removeLocked(id)
	}
}

func copySession(s *models.DecodeSession) *models.DecodeSession {
	cp := *s
	cp.Diagnostics = append(make([]models.Diagnostic, 0, len(s.Diagnostics)), s.Diagnostics...)
	if s.Failure != nil {
		f := *s.Failure
		cp.Failure = &f
	}
	return &cp
}

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
