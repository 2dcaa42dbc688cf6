package app

import (
	"bitwise74/model-vault/db"
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/internal/model"
	"bitwise74/model-vault/internal/registry"
	"bitwise74/model-vault/internal/service"
	"bitwise74/model-vault/internal/storage"
	"bitwise74/model-vault/pkg/security"
	"bitwise74/model-vault/pkg/validators"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	t      *testing.T
	d      *internal.Deps
	router *gin.Engine
	store  *storage.LocalStorage
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dir := t.TempDir()

	gdb, err := db.New("sqlite", filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := storage.NewLocal(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	reg := registry.New(gdb, store)

	d := &internal.Deps{
		DB:        gdb,
		Argon:     security.New(),
		Storage:   store,
		Registry:  reg,
		Checker:   service.NewIntegrityChecker(reg, store, service.IntegrityOptions{}),
		JWTSecret: []byte("test secret"),
		TokenTTL:  time.Hour,
		UploadRules: validators.UploadRules{
			MaxSize:     100 << 20,
			AllowedExts: []string{"obj", "fbx", "gltf", "glb", "dae", "3ds", "ply", "stl"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &testApp{
		t:      t,
		d:      d,
		router: NewRouter(ctx, d),
		store:  store,
	}
}

func (a *testApp) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) doJSON(method, path string, body any, token string) *httptest.ResponseRecorder {
	b, err := json.Marshal(body)
	require.NoError(a.t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, token)
}

func (a *testApp) get(path, token string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), token)
}

// signup registers a user and returns an auth token for them
func (a *testApp) signup(username string) string {
	a.t.Helper()

	w := a.doJSON(http.MethodPost, "/api/users", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct horse battery",
		"fullName": strings.ToUpper(username),
	}, "")
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.doJSON(http.MethodPost, "/api/users/login", map[string]string{
		"email":    username + "@example.com",
		"password": "correct horse battery",
	}, "")
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(a.t, res.Token)

	return res.Token
}

func (a *testApp) upload(token, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}

	part, err := mw.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = part.Write(content)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req, token)
}

func (a *testApp) uploadOK(token, filename string, content []byte, fields map[string]string) model.Asset {
	a.t.Helper()

	w := a.upload(token, filename, content, fields)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var asset model.Asset
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &asset))
	return asset
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body["requestID"])
	return body
}

func glbContent(size int) []byte {
	b := make([]byte, size)
	copy(b, "glTF\x02\x00\x00\x00")
	for i := 8; i < size; i++ {
		b[i] = byte(i)
	}
	return b
}

func TestAssetLifecycle(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")

	content := glbContent(10240)
	asset := a.uploadOK(alice, "robot.glb", content, nil)

	require.Equal(t, "robot", asset.Name)
	require.Equal(t, "robot.glb", asset.OriginalName)
	require.Equal(t, "glb", asset.Extension)
	require.EqualValues(t, 10240, asset.SizeBytes)
	require.True(t, asset.IsPublic)
	require.False(t, asset.Missing)
	require.Equal(t, model.StringSlice{"glb"}, asset.Tags)

	path := fmt.Sprintf("/api/assets/%d", asset.ID)

	for range 2 {
		w := a.get(path+"/download", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, content, w.Body.Bytes())
		require.Equal(t, "model/gltf-binary", w.Header().Get("Content-Type"))
		require.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
		require.Contains(t, w.Header().Get("Content-Disposition"), "robot.glb")
	}

	w := a.get(path, "")
	require.Equal(t, http.StatusOK, w.Code)

	var fetched model.Asset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	require.EqualValues(t, 2, fetched.DownloadCount)

	w = a.get("/api/users", alice)
	require.Equal(t, http.StatusOK, w.Code)

	var profile model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	require.EqualValues(t, 10240, profile.Stats.UsedStorage)
	require.EqualValues(t, 1, profile.Stats.UploadedAssets)
	require.EqualValues(t, 2, profile.Stats.TotalDownloads)

	w = a.do(httptest.NewRequest(http.MethodDelete, path, nil), alice)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"deleted":true,"physicalDeleted":true}`, w.Body.String())

	w = a.get(path, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", errBody(t, w)["reason"])

	entries, err := os.ReadDir(a.store.Root())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUploadRequiresAuth(t *testing.T) {
	a := newTestApp(t)

	w := a.upload("", "robot.glb", glbContent(64), nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadValidation(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")

	w := a.upload(alice, "notes.txt", []byte("hello"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, validators.ReasonUnsupportedType, errBody(t, w)["reason"])

	w = a.upload(alice, "fake.glb", []byte("this is not a model at all"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, validators.ReasonContentMismatch, errBody(t, w)["reason"])

	w = a.upload(alice, "cube.obj", []byte("v 0 0 0\n"), map[string]string{"isPublic": "maybe"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/assets", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = a.do(req, alice)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, validators.ReasonNoFile, errBody(t, w)["reason"])

	entries, err := os.ReadDir(a.store.Root())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUploadTooLarge(t *testing.T) {
	a := newTestApp(t)
	a.d.UploadRules.MaxSize = 1024
	a.router = NewRouter(context.Background(), a.d)
	alice := a.signup("alice")

	w := a.upload(alice, "big.stl", bytes.Repeat([]byte{1}, 2048), nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Equal(t, validators.ReasonFileTooLarge, errBody(t, w)["reason"])
}

func TestPrivateAssetIsHidden(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")
	bob := a.signup("bob")

	asset := a.uploadOK(alice, "secret.stl", []byte("solid secret"), map[string]string{
		"isPublic":    "false",
		"name":        "Secret part",
		"description": "not for bob",
	})
	require.False(t, asset.IsPublic)
	require.Equal(t, "Secret part", asset.Name)

	path := fmt.Sprintf("/api/assets/%d", asset.ID)
	missingPath := "/api/assets/999999"

	for _, token := range []string{"", bob} {
		hidden := a.get(path, token)
		absent := a.get(missingPath, token)

		require.Equal(t, http.StatusNotFound, hidden.Code)
		require.Equal(t, absent.Code, hidden.Code)
		require.Equal(t, errBody(t, absent)["error"], errBody(t, hidden)["error"])

		require.Equal(t, http.StatusNotFound, a.get(path+"/download", token).Code)
		require.Equal(t, http.StatusNotFound, a.get(path+"/view", token).Code)
	}

	require.Equal(t, http.StatusOK, a.get(path, alice).Code)
	require.Equal(t, http.StatusOK, a.get(path+"/download", alice).Code)

	// Bob can't edit or delete it either
	w := a.doJSON(http.MethodPatch, path, map[string]any{"isPublic": true}, bob)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(httptest.NewRequest(http.MethodDelete, path, nil), bob)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.get("/api/assets", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list registry.PageResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Zero(t, list.Total)

	w = a.get("/api/assets?mine=true", alice)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.EqualValues(t, 1, list.Total)

	require.Equal(t, http.StatusUnauthorized, a.get("/api/assets?mine=true", "").Code)
}

func TestMissingAssetIsGone(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")
	ctx := context.Background()

	flagged := a.uploadOK(alice, "flagged.obj", []byte("v 0 0 0\n"), nil)
	require.NoError(t, a.d.Registry.SetMissing(ctx, flagged.ID, true))

	path := fmt.Sprintf("/api/assets/%d", flagged.ID)

	w := a.get(path+"/download", "")
	require.Equal(t, http.StatusGone, w.Code)
	require.Equal(t, "asset_unavailable", errBody(t, w)["reason"])

	w = a.get(path+"/view", "")
	require.Equal(t, http.StatusGone, w.Code)

	// Metadata stays visible
	w = a.get(path, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"missing":true`)

	// Bytes gone before the checker noticed
	lost := a.uploadOK(alice, "lost.obj", []byte("v 1 1 1\n"), nil)
	require.NoError(t, os.Remove(filepath.Join(a.store.Root(), storedNameOf(t, a, lost.ID))))

	w = a.get(fmt.Sprintf("/api/assets/%d/download", lost.ID), "")
	require.Equal(t, http.StatusGone, w.Code)

	got, err := a.d.Registry.Get(ctx, lost.ID)
	require.NoError(t, err)
	require.Zero(t, got.DownloadCount)
}

func storedNameOf(t *testing.T, a *testApp, id uint) string {
	t.Helper()

	got, err := a.d.Registry.Get(context.Background(), id)
	require.NoError(t, err)
	return got.StoredName
}

func TestViewServesInline(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")

	asset := a.uploadOK(alice, "cube.obj", []byte("v 0 0 0\n"), nil)

	w := a.get(fmt.Sprintf("/api/assets/%d/view", asset.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "inline")

	// Viewing isn't downloading
	got, err := a.d.Registry.Get(context.Background(), asset.ID)
	require.NoError(t, err)
	require.Zero(t, got.DownloadCount)
}

func TestEditAsset(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")

	asset := a.uploadOK(alice, "cube.obj", []byte("v 0 0 0\n"), nil)
	path := fmt.Sprintf("/api/assets/%d", asset.ID)

	w := a.doJSON(http.MethodPatch, path, map[string]any{
		"name":     "Cube",
		"isPublic": false,
		"tags":     "Low Poly, cube",
	}, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var edited model.Asset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edited))
	require.Equal(t, "Cube", edited.Name)
	require.False(t, edited.IsPublic)
	require.Equal(t, model.StringSlice{"low poly", "cube"}, edited.Tags)

	w = a.doJSON(http.MethodPatch, path, map[string]any{"name": "  "}, alice)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPagination(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")

	for i := range 3 {
		a.uploadOK(alice, fmt.Sprintf("part-%d.stl", i), []byte("solid"), nil)
	}

	w := a.get("/api/assets?page=2&per_page=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list registry.PageResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.EqualValues(t, 3, list.Total)
	require.Equal(t, 2, list.Pages)
	require.Len(t, list.Assets, 1)
	require.Equal(t, "part-0", list.Assets[0].Name)

	w = a.get("/api/assets?search=PART-2", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.EqualValues(t, 1, list.Total)

	require.Equal(t, http.StatusBadRequest, a.get("/api/assets?page=abc", "").Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newTestApp(t)
	a.signup("alice")

	w := a.doJSON(http.MethodPost, "/api/users/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	unknown := a.doJSON(http.MethodPost, "/api/users/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "wrong password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, errBody(t, w)["error"], errBody(t, unknown)["error"])

	w = a.doJSON(http.MethodPost, "/api/users", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "correct horse battery",
	}, "")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteAccount(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")

	a.uploadOK(alice, "a.stl", []byte("solid a"), nil)
	a.uploadOK(alice, "b.stl", []byte("solid b"), nil)

	w := a.do(httptest.NewRequest(http.MethodDelete, "/api/users", nil), alice)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"deleted":true,"assets":2}`, w.Body.String())

	entries, err := os.ReadDir(a.store.Root())
	require.NoError(t, err)
	require.Empty(t, entries)

	// The token outlives the account
	require.Equal(t, http.StatusUnauthorized, a.get("/api/users", alice).Code)
}

func TestStatsAndHeartbeat(t *testing.T) {
	a := newTestApp(t)
	alice := a.signup("alice")
	a.uploadOK(alice, "a.stl", []byte("solid a"), nil)

	w := a.do(httptest.NewRequest(http.MethodHead, "/api/heartbeat", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = a.get("/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var totals registry.Totals
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &totals))
	require.EqualValues(t, 1, totals.PublicAssets)
	require.EqualValues(t, 1, totals.Users)
	require.EqualValues(t, 7, totals.UsedStorage)
}

func TestIntegrityCheckWithNoAssets(t *testing.T) {
	a := newTestApp(t)

	report, err := a.d.Checker.Check(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Total)
	require.Zero(t, report.Found)
	require.Zero(t, report.Missing)
	require.Zero(t, report.Unknown)
	require.Empty(t, report.Errors)
}

func TestNewStorage(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("storage.type", "ftp")
	_, err := NewStorage(context.Background())
	require.Error(t, err)

	dir := filepath.Join(t.TempDir(), "models")
	viper.Set("storage.type", "local")
	viper.Set("storage.local.path", dir)

	p, err := NewStorage(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.BackendLocal, p.Backend())
	require.DirExists(t, dir)
}
