package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgsv-tools/savedump/internal/models"
	"github.com/mgsv-tools/savedump/internal/storage"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		showDetails bool
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{
			name:       "api error",
			err:        NewNotFoundError("session", "abc"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("handler: %w", NewConflictError("busy")),
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"),
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "HTTP_ERROR",
		},
		{
			name:       "unknown error hides details",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "UNKNOWN_ERROR",
		},
		{
			name:        "unknown error with details",
			err:         errors.New("disk on fire"),
			showDetails: true,
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "UNKNOWN_ERROR",
			wantDetails: "disk on fire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := showErrorDetails
			showErrorDetails = tt.showDetails
			t.Cleanup(func() { showErrorDetails = prev })

			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetails, body.Details)
		})
	}
}

func TestStoreError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, storeError(fmt.Errorf("%w: x", storage.ErrNotFound), "x").Status)
	assert.Equal(t, http.StatusRequestEntityTooLarge, storeError(storage.ErrTooLarge, "").Status)
	assert.Equal(t, http.StatusInternalServerError, storeError(errors.New("io"), "").Status)
}

func TestNewDecodeError(t *testing.T) {
	err := NewDecodeError(&models.DecodeFailure{Step: "magic", Offset: 0, Reason: "invalid format"})
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.Equal(t, "magic at offset 0: invalid format", err.Details)

	assert.Empty(t, NewDecodeError(nil).Details)
}
