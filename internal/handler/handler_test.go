package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/server/middleware"
	"github.com/foliodev/folio/internal/service"
	"github.com/foliodev/folio/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
	testEmail     = "admin@example.com"
)

// captureMailer remembers the last code sent to each address.
type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *captureMailer) SendOTP(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[to] = code
	return m.err
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store   *store.Store
	authSvc *service.AuthService
	mailer  *captureMailer
	router  chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// Chi router with the auth and content routes mounted.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("store.NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mailer := &captureMailer{}
	authSvc := service.NewAuthService(st, mailer, testJWTSecret, service.WithBcryptCost(bcrypt.MinCost))
	authHandler := NewAuthHandler(authSvc, nil)
	contentHandler := NewContentHandler(service.NewContentService(st, nil), nil)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/check-email", authHandler.CheckEmail)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/send-otp", authHandler.SendOTP)
		r.Post("/auth/verify-otp", authHandler.VerifyOTP)
		r.Delete("/auth/session", authHandler.Logout)

		r.Get("/content", contentHandler.List)
		r.Get("/content/", contentHandler.MissingType)
		r.Get("/content/{type}", contentHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authSvc))
			r.Get("/auth/session", authHandler.Session)
			r.Put("/content/{type}", contentHandler.Put)
			r.Post("/content/{type}", contentHandler.Put)
		})
	})

	return &testEnv{
		store:   st,
		authSvc: authSvc,
		mailer:  mailer,
		router:  r,
	}
}

// seedAdmin whitelists testEmail and returns it.
func (e *testEnv) seedAdmin(t *testing.T) *model.Admin {
	t.Helper()
	admin, _, err := e.store.SeedAdmin(context.Background(), testEmail, nil)
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// register seeds testEmail with testPassword and returns a session token.
func (e *testEnv) register(t *testing.T) string {
	t.Helper()
	e.seedAdmin(t)
	rr := e.do(t, "POST", "/api/auth/register", toJSON(t, map[string]string{
		"email": testEmail, "password": testPassword,
	}), "")
	assertStatus(t, rr, 200)
	var resp model.SessionResponse
	decodeJSON(t, rr, &resp)
	return resp.Token
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env model.ErrorResponse
	decodeJSON(t, rr, &env)
	if env.Error.Code != rr.Code {
		t.Errorf("envelope code %d does not match status %d", env.Error.Code, rr.Code)
	}
	return env.Error.Message
}

// ---------------------------------------------------------------------------
// Auth endpoints
// ---------------------------------------------------------------------------

func TestCheckEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.do(t, "POST", "/api/auth/check-email", strings.NewReader(`{"email":"Admin@Example.com"}`), "")
	assertStatus(t, rr, 200)
	var status model.IdentityStatus
	decodeJSON(t, rr, &status)
	if !status.Authorized || status.HasPassword || status.Email != testEmail {
		t.Errorf("unexpected status %+v", status)
	}

	rr = env.do(t, "POST", "/api/auth/check-email", strings.NewReader(`{"email":"nobody@example.com"}`), "")
	assertStatus(t, rr, 403)

	rr = env.do(t, "POST", "/api/auth/check-email", strings.NewReader(`{}`), "")
	assertStatus(t, rr, 400)
	if msg := errorMessage(t, rr); msg != "email is required" {
		t.Errorf("message = %q", msg)
	}

	rr = env.do(t, "POST", "/api/auth/check-email", strings.NewReader(`not json`), "")
	assertStatus(t, rr, 400)
}

func TestUnknownEmailIs403OnEveryAuthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	bodies := map[string]string{
		"/api/auth/check-email": `{"email":"x@example.com"}`,
		"/api/auth/login":       `{"email":"x@example.com","password":"whatever"}`,
		"/api/auth/register":    `{"email":"x@example.com","password":"whatever"}`,
		"/api/auth/send-otp":    `{"email":"x@example.com"}`,
		"/api/auth/verify-otp":  `{"email":"x@example.com","otp":"123456"}`,
	}
	for path, body := range bodies {
		rr := env.do(t, "POST", path, strings.NewReader(body), "")
		if rr.Code != 403 {
			t.Errorf("%s: status = %d, want 403", path, rr.Code)
		}
	}
}

func TestLoginRegisterFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	// Login before register.
	rr := env.do(t, "POST", "/api/auth/login", toJSON(t, map[string]string{
		"email": testEmail, "password": testPassword,
	}), "")
	assertStatus(t, rr, 400)
	if msg := errorMessage(t, rr); !strings.Contains(msg, "register") {
		t.Errorf("message = %q, want a pointer to registration", msg)
	}

	// Short password.
	rr = env.do(t, "POST", "/api/auth/register", toJSON(t, map[string]string{
		"email": testEmail, "password": "abc",
	}), "")
	assertStatus(t, rr, 400)

	// Longer than bcrypt accepts.
	rr = env.do(t, "POST", "/api/auth/register", toJSON(t, map[string]string{
		"email": testEmail, "password": strings.Repeat("a", 80),
	}), "")
	assertStatus(t, rr, 400)
	if msg := errorMessage(t, rr); !strings.Contains(msg, "at most 72 bytes") {
		t.Errorf("message = %q", msg)
	}

	// Register.
	rr = env.do(t, "POST", "/api/auth/register", toJSON(t, map[string]string{
		"email": testEmail, "password": testPassword, "mobile": "+15550100",
	}), "")
	assertStatus(t, rr, 200)
	var sess model.SessionResponse
	decodeJSON(t, rr, &sess)
	if !sess.Success || sess.Token == "" || sess.User.Email != testEmail {
		t.Errorf("unexpected session %+v", sess)
	}

	// Register again.
	rr = env.do(t, "POST", "/api/auth/register", toJSON(t, map[string]string{
		"email": testEmail, "password": "another-password",
	}), "")
	assertStatus(t, rr, 400)
	if msg := errorMessage(t, rr); !strings.Contains(msg, "already set") {
		t.Errorf("message = %q", msg)
	}

	// Login.
	rr = env.do(t, "POST", "/api/auth/login", toJSON(t, map[string]string{
		"email": testEmail, "password": testPassword,
	}), "")
	assertStatus(t, rr, 200)

	rr = env.do(t, "POST", "/api/auth/login", toJSON(t, map[string]string{
		"email": testEmail, "password": "wrong-password",
	}), "")
	assertStatus(t, rr, 401)
	if msg := errorMessage(t, rr); msg != "Invalid password" {
		t.Errorf("message = %q", msg)
	}

	rr = env.do(t, "POST", "/api/auth/login", toJSON(t, map[string]string{"email": testEmail}), "")
	assertStatus(t, rr, 400)
}

func TestOTPEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.do(t, "POST", "/api/auth/send-otp", strings.NewReader(`{"email":"admin@example.com"}`), "")
	assertStatus(t, rr, 200)
	var ack model.SuccessResponse
	decodeJSON(t, rr, &ack)
	if !ack.Success || ack.Message == "" {
		t.Errorf("unexpected ack %+v", ack)
	}

	code := env.mailer.code(testEmail)
	if len(code) != 6 {
		t.Fatalf("mailed code = %q", code)
	}

	verify := func() *httptest.ResponseRecorder {
		return env.do(t, "POST", "/api/auth/verify-otp", toJSON(t, map[string]string{
			"email": testEmail, "otp": code,
		}), "")
	}
	rr = verify()
	assertStatus(t, rr, 200)

	rr = verify()
	assertStatus(t, rr, 401)
	if msg := errorMessage(t, rr); msg != "Invalid or expired OTP" {
		t.Errorf("message = %q", msg)
	}

	rr = env.do(t, "POST", "/api/auth/verify-otp", strings.NewReader(`{"email":"admin@example.com"}`), "")
	assertStatus(t, rr, 400)
}

func TestSendOTPDeliveryFailureIs500(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	env.mailer.err = errors.New("connection refused by smtp.internal:587")

	rr := env.do(t, "POST", "/api/auth/send-otp", strings.NewReader(`{"email":"admin@example.com"}`), "")
	assertStatus(t, rr, 500)
	msg := errorMessage(t, rr)
	if msg != "Failed to send OTP" {
		t.Errorf("message = %q", msg)
	}
	if strings.Contains(msg, "smtp.internal") {
		t.Error("internal cause leaked to the client")
	}
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t)

	rr := env.do(t, "GET", "/api/auth/session", nil, token)
	assertStatus(t, rr, 200)
	var info model.SessionInfo
	decodeJSON(t, rr, &info)
	if !info.Authenticated || info.User.Email != testEmail || info.ExpiresAt.IsZero() {
		t.Errorf("unexpected session info %+v", info)
	}

	rr = env.do(t, "GET", "/api/auth/session", nil, "")
	assertStatus(t, rr, 401)

	rr = env.do(t, "DELETE", "/api/auth/session", nil, "")
	assertStatus(t, rr, 200)
}

// ---------------------------------------------------------------------------
// Content endpoints
// ---------------------------------------------------------------------------

func TestGetContentDefault(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/content/projects", nil, "")
	assertStatus(t, rr, 200)
	var resp model.BucketResponse
	decodeJSON(t, rr, &resp)
	if !resp.IsDefault || string(resp.Data) != "[]" {
		t.Errorf("got %+v, want [] default", resp)
	}

	rr = env.do(t, "GET", "/api/content/settings", nil, "")
	assertStatus(t, rr, 200)
	decodeJSON(t, rr, &resp)
	var settings model.Settings
	if err := json.Unmarshal(resp.Data, &settings); err != nil {
		t.Fatalf("unmarshal settings: %v", err)
	}
	if settings.SiteTitle != "Portfolio" {
		t.Errorf("settings default = %+v", settings)
	}
}

func TestGetContentMissingType(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/content/", nil, "")
	assertStatus(t, rr, 400)
	if msg := errorMessage(t, rr); msg != "Content type is required" {
		t.Errorf("message = %q", msg)
	}

	rr = env.do(t, "GET", "/api/content/bad%20key", nil, "")
	assertStatus(t, rr, 400)
}

func TestPutContentRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t)

	body := `{"data":{"name":"Ada"}}`
	rr := env.do(t, "PUT", "/api/content/profile", strings.NewReader(body), "")
	assertStatus(t, rr, 401)

	rr = env.do(t, "PUT", "/api/content/profile", strings.NewReader(body), "forged.token.value")
	assertStatus(t, rr, 401)

	// Nothing was written.
	rr = env.do(t, "GET", "/api/content/profile", nil, "")
	var resp model.BucketResponse
	decodeJSON(t, rr, &resp)
	if !resp.IsDefault {
		t.Fatal("rejected write changed the stored document")
	}

	rr = env.do(t, "PUT", "/api/content/profile", strings.NewReader(body), token)
	assertStatus(t, rr, 200)
	var ack model.SuccessResponse
	decodeJSON(t, rr, &ack)
	if !ack.Success {
		t.Error("expected success ack")
	}

	rr = env.do(t, "GET", "/api/content/profile", nil, "")
	decodeJSON(t, rr, &resp)
	if resp.IsDefault || !strings.Contains(string(resp.Data), "Ada") {
		t.Errorf("got %+v after write", resp)
	}
}

func TestPutContentExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)

	token, err := env.authSvc.IssueJWT(context.Background(), admin.ID, admin.Email, -time.Minute)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	rr := env.do(t, "POST", "/api/content/notes", strings.NewReader(`{"data":[]}`), token)
	assertStatus(t, rr, 401)
}

func TestPutContentDataField(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t)

	// Absent data field.
	rr := env.do(t, "PUT", "/api/content/notes", strings.NewReader(`{"value":[]}`), token)
	assertStatus(t, rr, 400)

	// Explicit null is a legitimate value.
	rr = env.do(t, "POST", "/api/content/notes", strings.NewReader(`{"data":null}`), token)
	assertStatus(t, rr, 200)

	rr = env.do(t, "GET", "/api/content/notes", nil, "")
	var resp model.BucketResponse
	decodeJSON(t, rr, &resp)
	if string(resp.Data) != "null" || resp.IsDefault {
		t.Errorf("got %+v, want stored null", resp)
	}

	// Empty array and object are legitimate too.
	for _, body := range []string{`{"data":[]}`, `{"data":{}}`} {
		rr = env.do(t, "PUT", "/api/content/notes", strings.NewReader(body), token)
		assertStatus(t, rr, 200)
	}
}

func TestListContent(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t)

	rr := env.do(t, "PUT", "/api/content/settings", strings.NewReader(`{"data":{"theme":"light"}}`), token)
	assertStatus(t, rr, 200)

	rr = env.do(t, "GET", "/api/content", nil, "")
	assertStatus(t, rr, 200)
	var list model.ListResponse[model.BucketSummary]
	decodeJSON(t, rr, &list)
	if list.Count != len(model.KnownBuckets) {
		t.Fatalf("count = %d, want %d", list.Count, len(model.KnownBuckets))
	}
	for _, s := range list.Resource {
		if wantDefault := s.Key != "settings"; s.IsDefault != wantDefault {
			t.Errorf("%s: isDefault = %v, want %v", s.Key, s.IsDefault, wantDefault)
		}
	}
}
