// routes.go - Route registration and middleware setup
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mgsv-tools/savedump/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store                storage.Store
	SessionMgr           SessionManager
	DefaultFormatVersion int
	Version              string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Files  FileHandler
	Decode DecodeHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.SessionMgr),
		Files:  NewFileHandler(deps.Store),
		Decode: NewDecodeHandler(deps.Store, deps.SessionMgr, deps.DefaultFormatVersion),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers, allowDelete bool) {
	e.GET("/api/health", handlers.Health.HandleHealth)

	fileGroup := e.Group("/api/files")
	fileGroup.POST("/upload", handlers.Files.HandleUploadFile)
	fileGroup.POST("/upload/base64", handlers.Files.HandleUploadBase64)
	fileGroup.GET("/recent", handlers.Files.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Files.HandleGetFile)
	fileGroup.PUT("/:id", handlers.Files.HandleRenameFile)
	if allowDelete {
		fileGroup.DELETE("/:id", handlers.Files.HandleDeleteFile)
	}

	decodeGroup := e.Group("/api/decode")
	decodeGroup.POST("", handlers.Decode.HandleStartDecode)
	decodeGroup.GET("/:sessionId/status", handlers.Decode.HandleDecodeStatus)
	decodeGroup.GET("/:sessionId/progress", handlers.Decode.HandleDecodeProgressStream)
	decodeGroup.GET("/:sessionId/document", handlers.Decode.HandleGetDocument)
	decodeGroup.GET("/:sessionId/fields", handlers.Decode.HandleGetFields)
	decodeGroup.POST("/:sessionId/keepalive", handlers.Decode.HandleSessionKeepAlive)
	decodeGroup.DELETE("/:sessionId", handlers.Decode.HandleDeleteSession)
}

// MiddlewareConfig selects the optional middleware installed by SetupMiddleware.
type MiddlewareConfig struct {
	Logger           *slog.Logger
	RequestLogging   bool
	BodyLimit        string // e.g. "64M"; empty disables the limit
	GzipLevel        int    // 0 disables response compression
	AllowOrigins     []string
	ShowErrorDetails bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = ErrorHandler
	showErrorDetails = cfg.ShowErrorDetails

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
	}))

	if cfg.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper:    skipPolling,
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogError:   true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				level := slog.LevelInfo
				if v.Error != nil || v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				logger.LogAttrs(c.Request().Context(), level, "request",
					slog.String("component", "http"),
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Duration("latency", v.Latency),
				)
				return nil
			},
		}))
	}

	if cfg.GzipLevel != 0 {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.GzipLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Request().URL.Path, "/progress")
			},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// skipPolling keeps status polls and progress streams out of the request log.
func skipPolling(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/status") ||
		strings.HasSuffix(path, "/progress") ||
		path == "/api/health"
}
