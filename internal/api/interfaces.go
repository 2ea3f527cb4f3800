// interfaces.go - Handler interface definitions
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/mgsv-tools/savedump/internal/document"
	"github.com/mgsv-tools/savedump/internal/models"
	"github.com/mgsv-tools/savedump/internal/parser"
)

// FileHandler handles uploaded save and global files
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBase64(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// DecodeHandler handles decode sessions and their results
type DecodeHandler interface {
	HandleStartDecode(c echo.Context) error
	HandleDecodeStatus(c echo.Context) error
	HandleDecodeProgressStream(c echo.Context) error
	HandleGetDocument(c echo.Context) error
	HandleGetFields(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(fileID, filePath, kind string, formatVersion int) (*models.DecodeSession, error)
	GetSession(id string) (*models.DecodeSession, bool)
	GetDocument(id string) (*document.Value, error)
	QueryFields(ctx context.Context, id string, q parser.FieldQuery) (*models.FieldPage, error)
	TouchSession(id string) bool
	DeleteSession(id string) bool
	Count() int
}
