package models

// SessionStatus represents the status of a decode session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusDecoding SessionStatus = "decoding"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// DecodeSession represents one asynchronous decode of an uploaded file.
type DecodeSession struct {
	ID               string         `json:"id"`
	FileID           string         `json:"fileId"`
	Kind             string         `json:"kind"`                    // "save" or "global"
	FormatVersion    int            `json:"formatVersion,omitempty"` // only meaningful for saves
	Status           SessionStatus  `json:"status"`
	Progress         float64        `json:"progress"` // 0-100
	FieldCount       int            `json:"fieldCount,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty"`
	StartTime        int64          `json:"startTime,omitempty"` // Unix ms
	EndTime          int64          `json:"endTime,omitempty"`   // Unix ms
	ParserName       string         `json:"parserName,omitempty"`
	Diagnostics      []Diagnostic   `json:"diagnostics"`
	Failure          *DecodeFailure `json:"failure,omitempty"`
}

// DecodeFailure describes why a session ended in error.
type DecodeFailure struct {
	Step   string `json:"step,omitempty"`
	Offset int    `json:"offset"`
	Reason string `json:"reason"`
}

// NewDecodeSession creates a new DecodeSession in pending status.
func NewDecodeSession(id, fileID, kind string, formatVersion int) *DecodeSession {
	return &DecodeSession{
		ID:            id,
		FileID:        fileID,
		Kind:          kind,
		FormatVersion: formatVersion,
		Status:        SessionStatusPending,
		Diagnostics:   make([]Diagnostic, 0),
	}
}

// Finished reports whether the session has reached a terminal status.
func (s *DecodeSession) Finished() bool {
	return s.Status == SessionStatusComplete || s.Status == SessionStatusError
}
