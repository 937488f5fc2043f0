// ABOUTME: Tests for the HTTP API using a stub fetcher and in-memory backend
// ABOUTME: Exercises module listing, registration, both login flows, and profile updates

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindevis/QMServer/internal/auth"
	"github.com/mindevis/QMServer/internal/modules"
)

// memBackend is an in-memory modules.Backend for handler tests.
type memBackend struct {
	admins map[string]*modules.Admin
}

func newMemBackend() *memBackend {
	return &memBackend{admins: make(map[string]*modules.Admin)}
}

func (b *memBackend) InitDatabase(ctx context.Context) error { return nil }

func (b *memBackend) CreateAdmin(_ context.Context, username, password, email string) error {
	if _, ok := b.admins[username]; ok {
		return modules.ErrAdminExists
	}
	b.admins[username] = &modules.Admin{
		Username:     username,
		Email:        email,
		PasswordHash: "hashed:" + password,
	}
	return nil
}

func (b *memBackend) GetAdminByUsername(_ context.Context, username string) (*modules.Admin, error) {
	admin, ok := b.admins[username]
	if !ok {
		return nil, modules.ErrAdminNotFound
	}
	return admin, nil
}

func (b *memBackend) GetAdminByEmail(_ context.Context, email string) (*modules.Admin, error) {
	for _, admin := range b.admins {
		if admin.Email == email {
			return admin, nil
		}
	}
	return nil, modules.ErrAdminNotFound
}

func (b *memBackend) VerifyPassword(hash, password string) bool {
	return hash == "hashed:"+password
}

func (b *memBackend) UpdateAdminUsername(_ context.Context, oldName, newName string) error {
	admin, ok := b.admins[oldName]
	if !ok {
		return modules.ErrAdminNotFound
	}
	if _, taken := b.admins[newName]; taken {
		return modules.ErrAdminExists
	}
	delete(b.admins, oldName)
	admin.Username = newName
	b.admins[newName] = admin
	return nil
}

func (b *memBackend) Close() error { return nil }

// stubFetcher returns a fixed local directory for every ref.
type stubFetcher struct {
	dir string
}

func (f *stubFetcher) Fetch(ctx context.Context, ref string) (string, error) {
	return f.dir, nil
}

// newTestServer runs the module pipeline against a stub source tree and
// returns a mux with all routes registered.
func newTestServer(t *testing.T) (*http.ServeMux, *auth.JWTVerifier) {
	t.Helper()

	srcDir := t.TempDir()
	descriptor := `{"name":"sqlite","version":"1.2.3","is_free":true,"is_default":true,"description":"Embedded admin store."}`
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "module.json"), []byte(descriptor), 0644))

	mgr := modules.NewManager(modules.ManagerConfig{
		RepoURL:     "https://gitlab.example/modules.git",
		RepoToken:   "token",
		InstallRoot: t.TempDir(),
		Modules:     []string{"sqlite"},
		Factories: map[string]modules.BackendFactory{
			"sqlite": func(string) (modules.Backend, error) { return newMemBackend(), nil },
		},
		Fetcher: &stubFetcher{dir: srcDir},
	})
	require.NoError(t, mgr.Sync(context.Background()))
	t.Cleanup(func() { mgr.Close() })

	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	mux := http.NewServeMux()
	New(mgr, verifier).RegisterRoutes(mux)
	return mux, verifier
}

// newUnconfiguredServer builds a server whose module pipeline never ran a
// fetch, so no backend is available.
func newUnconfiguredServer(t *testing.T) *http.ServeMux {
	t.Helper()

	mgr := modules.NewManager(modules.ManagerConfig{
		InstallRoot: t.TempDir(),
		Modules:     []string{"sqlite"},
	})
	require.NoError(t, mgr.Sync(context.Background()))

	mux := http.NewServeMux()
	New(mgr, auth.NewJWTVerifier([]byte("test-secret"))).RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func registerAdmin(t *testing.T, mux *http.ServeMux, username, password, email string) {
	t.Helper()
	rec := doJSON(t, mux, "POST", "/api/v1/admin/register",
		`{"username":"`+username+`","password":"`+password+`","email":"`+email+`"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, "register body: %s", rec.Body.String())
}

func TestRoot(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "GET", "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["message"], "QMServer is running")
}

func TestRoot_APIPrefix(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "GET", "/api/v1/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["message"], "QMServer is running")
}

func TestHealth(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = doJSON(t, mux, "GET", "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady_NoBackend(t *testing.T) {
	mux := newUnconfiguredServer(t)

	rec := doJSON(t, mux, "GET", "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListModules(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "GET", "/api/v1/modules", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]modules.ModuleInfo](t, rec)
	require.Contains(t, body, "sqlite")
	info := body["sqlite"]
	assert.Equal(t, "1.2.3", info.Version)
	assert.True(t, info.IsFree)
	assert.True(t, info.IsInstalled)
	assert.True(t, info.IsActivated)
	assert.Equal(t, "Embedded admin store.", info.Description)
}

func TestModuleDetail(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "GET", "/api/v1/modules/sqlite", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	info := decodeBody[modules.ModuleInfo](t, rec)
	assert.Equal(t, "sqlite", info.Name)
	assert.Equal(t, "1.2.3", info.Version)
}

func TestModuleDetail_NotFound(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "GET", "/api/v1/modules/postgres", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Module not found", body["error"])
}

func TestModuleDetail_NotConfiguredEntryServed(t *testing.T) {
	mux := newUnconfiguredServer(t)

	rec := doJSON(t, mux, "GET", "/api/v1/modules/sqlite", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	info := decodeBody[modules.ModuleInfo](t, rec)
	assert.False(t, info.IsInstalled)
	assert.False(t, info.IsActivated)
	assert.Equal(t, "Module repository is not configured.", info.Description)
}

func TestAdminRegister(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "POST", "/api/v1/admin/register",
		`{"username":"alice","password":"pw","email":"alice@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody[AdminResponse](t, rec)
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, "alice@example.com", body.Email)
}

func TestAdminRegister_Duplicate(t *testing.T) {
	mux, _ := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "alice@example.com")

	rec := doJSON(t, mux, "POST", "/api/v1/admin/register",
		`{"username":"alice","password":"other","email":"other@example.com"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Username already registered", body["error"])
}

func TestAdminRegister_NoBackend(t *testing.T) {
	mux := newUnconfiguredServer(t)

	rec := doJSON(t, mux, "POST", "/api/v1/admin/register",
		`{"username":"alice","password":"pw"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func loginAdminForm(t *testing.T, mux *http.ServeMux, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest("POST", "/api/v1/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminLogin(t *testing.T) {
	mux, verifier := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "alice@example.com")

	rec := loginAdminForm(t, mux, "alice", "pw")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[TokenResponse](t, rec)
	assert.Equal(t, "bearer", body.TokenType)

	username, err := verifier.Verify(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestAdminLogin_WrongPassword(t *testing.T) {
	mux, _ := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "")

	rec := loginAdminForm(t, mux, "alice", "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestAdminLogin_UnknownUser(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := loginAdminForm(t, mux, "ghost", "pw")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminMe(t *testing.T) {
	mux, verifier := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "alice@example.com")

	token, err := verifier.Generate("alice", "alice@example.com", auth.AccessTokenTTL)
	require.NoError(t, err)

	rec := doJSON(t, mux, "GET", "/api/v1/admin/me", "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[AdminResponse](t, rec)
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, "alice@example.com", body.Email)
}

func TestAdminMe_NoToken(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "GET", "/api/v1/admin/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRegister_DefaultsUsernameFromEmail(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "POST", "/api/v1/auth/register",
		`{"email":"bob@example.com","password":"pw"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody[AdminResponse](t, rec)
	assert.Equal(t, "bob", body.Username)
	assert.Equal(t, "bob@example.com", body.Email)
}

func TestAuthRegister_ExplicitUsername(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "POST", "/api/v1/auth/register",
		`{"email":"bob@example.com","password":"pw","username":"robert"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody[AdminResponse](t, rec)
	assert.Equal(t, "robert", body.Username)
}

func TestAuthRegister_Duplicate(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "POST", "/api/v1/auth/register",
		`{"email":"bob@example.com","password":"pw"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, "POST", "/api/v1/auth/register",
		`{"email":"bob@example.com","password":"other"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "User with this email already exists", body["error"])
}

func TestAuthLogin_ByEmail(t *testing.T) {
	mux, verifier := newTestServer(t)
	registerAdmin(t, mux, "robert", "pw", "bob@example.com")

	rec := doJSON(t, mux, "POST", "/api/v1/auth/login",
		`{"email":"bob@example.com","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[TokenResponse](t, rec)
	username, err := verifier.Verify(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "robert", username)
}

func TestAuthLogin_FallsBackToEmailLocalPart(t *testing.T) {
	mux, verifier := newTestServer(t)
	// Account created without an email; lookup falls back to the local part.
	registerAdmin(t, mux, "bob", "pw", "")

	rec := doJSON(t, mux, "POST", "/api/v1/auth/login",
		`{"email":"bob@example.com","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[TokenResponse](t, rec)
	username, err := verifier.Verify(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", username)
}

func TestAuthLogin_WrongPassword(t *testing.T) {
	mux, _ := newTestServer(t)
	registerAdmin(t, mux, "robert", "pw", "bob@example.com")

	rec := doJSON(t, mux, "POST", "/api/v1/auth/login",
		`{"email":"bob@example.com","password":"wrong"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestAuthMe_BearerHeader(t *testing.T) {
	mux, verifier := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "alice@example.com")

	token, err := verifier.Generate("alice", "alice@example.com", auth.AccessTokenTTL)
	require.NoError(t, err)

	rec := doJSON(t, mux, "GET", "/api/v1/auth/me", "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[AdminResponse](t, rec)
	assert.Equal(t, "alice", body.Username)
}

func TestAuthMe_QueryToken(t *testing.T) {
	mux, verifier := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "alice@example.com")

	token, err := verifier.Generate("alice", "alice@example.com", auth.AccessTokenTTL)
	require.NoError(t, err)

	rec := doJSON(t, mux, "GET", "/api/v1/auth/me?token="+url.QueryEscape(token), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMe_NoToken(t *testing.T) {
	mux, _ := newTestServer(t)

	rec := doJSON(t, mux, "GET", "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileUpdate(t *testing.T) {
	mux, verifier := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "alice@example.com")

	token, err := verifier.Generate("alice", "alice@example.com", auth.AccessTokenTTL)
	require.NoError(t, err)

	rec := doJSON(t, mux, "PATCH", "/api/v1/auth/profile",
		`{"username":"ali"}`, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	body := decodeBody[ProfileUpdateResponse](t, rec)
	assert.Equal(t, "ali", body.Username)
	assert.Equal(t, "alice@example.com", body.Email)

	// New token carries the new username.
	username, err := verifier.Verify(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ali", username)

	// Old name no longer resolves, new one does.
	rec = doJSON(t, mux, "GET", "/api/v1/auth/me", "", map[string]string{
		"Authorization": "Bearer " + body.AccessToken,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileUpdate_UsernameTaken(t *testing.T) {
	mux, verifier := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "alice@example.com")
	registerAdmin(t, mux, "bob", "pw", "bob@example.com")

	token, err := verifier.Generate("alice", "alice@example.com", auth.AccessTokenTTL)
	require.NoError(t, err)

	rec := doJSON(t, mux, "PATCH", "/api/v1/auth/profile",
		`{"username":"bob"}`, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Username already taken", body["error"])
}

func TestProfileUpdate_SameUsernameReissuesToken(t *testing.T) {
	mux, verifier := newTestServer(t)
	registerAdmin(t, mux, "alice", "pw", "alice@example.com")

	token, err := verifier.Generate("alice", "alice@example.com", auth.AccessTokenTTL)
	require.NoError(t, err)

	rec := doJSON(t, mux, "PATCH", "/api/v1/auth/profile",
		`{"username":"alice"}`, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[ProfileUpdateResponse](t, rec)
	assert.Equal(t, "alice", body.Username)
	assert.NotEmpty(t, body.AccessToken)
}
