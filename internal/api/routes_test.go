package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/mgsv-tools/savedump/internal/models"
	"github.com/mgsv-tools/savedump/internal/parser"
	"github.com/mgsv-tools/savedump/internal/session"
	"github.com/mgsv-tools/savedump/internal/storage"
	"github.com/mgsv-tools/savedump/internal/testutil"
)

// newLiveServer wires a real store and session manager behind the full middleware stack.
func newLiveServer(t *testing.T) (*echo.Echo, *storage.LocalStore) {
	store, err := storage.NewLocalStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	mgr := session.NewManager(session.Config{TempDir: t.TempDir(), Logger: logger})
	mgr.OnFinish(FileStatusHook(store))
	t.Cleanup(mgr.Close)

	e := echo.New()
	SetupMiddleware(e, MiddlewareConfig{
		Logger:         logger,
		RequestLogging: true,
		BodyLimit:      "2M",
		AllowOrigins:   []string{"*"},
	})
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:                store,
		SessionMgr:           mgr,
		DefaultFormatVersion: 7,
		Version:              "test",
	}), true)
	return e, store
}

func uploadAndDecode(t *testing.T, e *echo.Echo, name string, data []byte, req startDecodeRequest) (models.FileInfo, models.DecodeSession) {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/files/upload/base64", uploadFileRequest{
		Name: name,
		Data: base64.StdEncoding.EncodeToString(data),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))

	req.FileID = info.ID
	rec = doJSON(t, e, http.MethodPost, "/api/decode", req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var sess models.DecodeSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	require.Eventually(t, func() bool {
		rec := doRequest(e, http.MethodGet, "/api/decode/"+sess.ID+"/status", nil, "")
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
			return false
		}
		return sess.Finished()
	}, 5*time.Second, 10*time.Millisecond)
	return info, sess
}

func TestLiveServer_DecodeSave(t *testing.T) {
	e, store := newLiveServer(t)

	info, sess := uploadAndDecode(t, e, "save000.dat", testutil.Pack(testutil.MinimalSave(7)),
		startDecodeRequest{Kind: "save"})
	require.Equal(t, models.SessionStatusComplete, sess.Status, "failure: %+v", sess.Failure)
	assert.Equal(t, 7, sess.FormatVersion)
	assert.Equal(t, parser.KindSave, sess.ParserName)

	require.Eventually(t, func() bool {
		got, err := store.Get(info.ID)
		return err == nil && got.Status == storage.StatusDecoded
	}, time.Second, 10*time.Millisecond)

	rec := doRequest(e, http.MethodGet, "/api/decode/"+sess.ID+"/document", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "0001-01-01T00:00:00Z", doc["Time"])
	assert.Equal(t, []interface{}{}, doc["CallStack"])

	rec = doRequest(e, http.MethodGet, "/api/decode/"+sess.ID+"/fields?prefix=CurrentScript", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page models.FieldPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "CurrentScript.Filename", page.Rows[0].Path)
	assert.Equal(t, "CurrentScript.LineNum", page.Rows[1].Path)
}

func TestLiveServer_DecodeGlobalWithoutPreset(t *testing.T) {
	e, _ := newLiveServer(t)

	global := testutil.GlobalFile(
		testutil.Doc(bsoncore.AppendInt32Element(nil, "5", 1)),
		testutil.TextArrayDoc("cg01"),
		testutil.EmptyDoc(),
		nil,
	)
	_, sess := uploadAndDecode(t, e, "global.dat", testutil.Pack(global), startDecodeRequest{})
	require.Equal(t, models.SessionStatusComplete, sess.Status, "failure: %+v", sess.Failure)
	assert.Equal(t, parser.KindGlobal, sess.ParserName)
	require.Len(t, sess.Diagnostics, 1)
	assert.Equal(t, parser.CodeOptionalFieldMissing, sess.Diagnostics[0].Code)

	rec := doRequest(e, http.MethodGet, "/api/decode/"+sess.ID+"/document", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"flags":{"5":1},"cgflags":["cg01"],"readText":{},"graphicsPresetState":{}}`,
		rec.Body.String())
}

func TestLiveServer_DecodeFailure(t *testing.T) {
	e, store := newLiveServer(t)

	plain := testutil.MinimalSave(7)
	copy(plain, "XXXX")
	info, sess := uploadAndDecode(t, e, "save000.dat", testutil.Pack(plain),
		startDecodeRequest{Kind: "save"})
	require.Equal(t, models.SessionStatusError, sess.Status)
	require.NotNil(t, sess.Failure)
	assert.Equal(t, "magic", sess.Failure.Step)
	assert.Equal(t, 0, sess.Failure.Offset)

	require.Eventually(t, func() bool {
		got, err := store.Get(info.ID)
		return err == nil && got.Status == storage.StatusError
	}, time.Second, 10*time.Millisecond)

	rec := doRequest(e, http.MethodGet, "/api/decode/"+sess.ID+"/document", nil, "")
	decodeAPIError(t, rec, http.StatusUnprocessableEntity, "DECODE_FAILED")
}

func TestLiveServer_Health(t *testing.T) {
	e, _ := newLiveServer(t)

	rec := doRequest(e, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status   string   `json:"status"`
		Version  string   `json:"version"`
		Parsers  []string `json:"parsers"`
		Formats  []string `json:"formats"`
		Sessions int      `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)
	assert.Equal(t, []string{"save", "global"}, body.Parsers)
	assert.Equal(t, []string{"json", "yaml", "msgpack", "cbor"}, body.Formats)
	assert.Zero(t, body.Sessions)
}
