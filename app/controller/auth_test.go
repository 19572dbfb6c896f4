package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/controller"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/password"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
)

const (
	insertUserQuery  = `(?s)INSERT INTO users \(email, hashed_password, is_admin, is_active, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?\)`
	findByEmailQuery = `(?s)SELECT id, email, hashed_password, is_admin, is_active, created_at, updated_at\s+FROM users WHERE email = \?`
	findByIDQuery    = `(?s)SELECT id, email, hashed_password, is_admin, is_active, created_at, updated_at\s+FROM users WHERE id = \?`
	updateUserQuery  = `(?s)UPDATE users SET\s+email = \?,\s+hashed_password = \?,\s+is_admin = \?,\s+is_active = \?,\s+updated_at = \?\s+WHERE id = \?`
	listUsersQuery   = `(?s)SELECT id, email, hashed_password, is_admin, is_active, created_at, updated_at\s+FROM users ORDER BY id`
)

var userColumns = []string{
	"id",
	"email",
	"hashed_password",
	"is_admin",
	"is_active",
	"created_at",
	"updated_at",
}

type dispatchCall struct {
	kind  mailer.Kind
	email string
	token string
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *recordingDispatcher) Dispatch(kind mailer.Kind, email, actionToken string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{kind: kind, email: email, token: actionToken})
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

type testStack struct {
	auth         *controller.AuthController
	users        *controller.UserController
	mock         sqlmock.Sqlmock
	dispatcher   *recordingDispatcher
	sessionCodec *token.Codec
	actionCodec  *token.Codec
}

func newStack(t *testing.T) (*testStack, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	cfg := &config.Config{
		AppName:        "accounts",
		Environment:    config.EnvProduction,
		SecretKey:      "test-secret",
		AccessTokenTTL: time.Hour,
		ActionTokenTTL: time.Hour,
	}

	sessionCodec := token.NewCodec(cfg.SecretKey, cfg.AccessTokenTTL, token.PurposeSession)
	actionCodec := token.NewCodec(cfg.SecretKey, cfg.ActionTokenTTL, token.PurposeAction)
	dispatcher := &recordingDispatcher{}
	svc := service.NewUserService(repository.NewUserRepository(db), dispatcher, actionCodec, cfg)

	stack := &testStack{
		auth:         controller.NewAuthController(svc, sessionCodec, actionCodec),
		users:        controller.NewUserController(svc),
		mock:         mock,
		dispatcher:   dispatcher,
		sessionCodec: sessionCodec,
		actionCodec:  actionCodec,
	}
	return stack, func() { _ = db.Close() }
}

func formContext(path string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func jsonContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func userRow(id uint64, email, digest string, isAdmin, isActive bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).AddRow(id, email, digest, isAdmin, isActive, now, now)
}

func mustHash(t *testing.T, plaintext string) string {
	t.Helper()

	digest, err := password.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return digest
}

func TestLogin_MissingFields(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	c, rec := formContext("/auth/token", url.Values{"username": {"user@example.com"}})
	if err := stack.auth.Login(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	c, rec := formContext("/auth/token", url.Values{
		"username": {"user@example.com"},
		"password": {"StrongPass123!"},
	})
	if err := stack.auth.Login(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestLogin_Success(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	digest := mustHash(t, "StrongPass123!")
	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(userRow(1, "user@example.com", digest, false, true))

	c, rec := formContext("/auth/token", url.Values{
		"username": {"user@example.com"},
		"password": {"StrongPass123!"},
	})
	if err := stack.auth.Login(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %q", body.TokenType)
	}

	claims, err := stack.sessionCodec.Decode(body.AccessToken)
	if err != nil {
		t.Fatalf("access token does not decode: %v", err)
	}
	if claims.Subject != "user@example.com" {
		t.Fatalf("expected subject user@example.com, got %q", claims.Subject)
	}
}

func TestGeneratePassword(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	c, rec := jsonContext(http.MethodGet, "/auth/generate-password", "")
	if err := stack.auth.GeneratePassword(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !password.IsStrong(body.Password) {
		t.Fatalf("generated password %q is not strong", body.Password)
	}
}

func TestRegister_Success(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))
	stack.mock.ExpectExec(insertUserQuery).
		WithArgs("user@example.com", sqlmock.AnyArg(), false, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := jsonContext(http.MethodPost, "/auth/users/register",
		`{"email":"user@example.com","password":"StrongPass123!"}`)
	if err := stack.auth.Register(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "activate your account") {
		t.Fatalf("expected the generic acknowledgement, got %s", rec.Body.String())
	}

	calls := stack.dispatcher.Calls()
	if len(calls) != 1 || calls[0].kind != mailer.KindNewAccount {
		t.Fatalf("expected one new-account dispatch, got %+v", calls)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	digest := mustHash(t, "StrongPass123!")
	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(userRow(1, "user@example.com", digest, false, true))

	c, rec := jsonContext(http.MethodPost, "/auth/users/register",
		`{"email":"user@example.com","password":"StrongPass123!"}`)
	if err := stack.auth.Register(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	c, rec := jsonContext(http.MethodPost, "/auth/users/register",
		`{"email":"user@example.com","password":"weak"}`)
	if err := stack.auth.Register(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestVerifyUser_InvalidToken(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	c, rec := jsonContext(http.MethodGet, "/auth/users/verify?token=not-a-token", "")
	if err := stack.auth.VerifyUser(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestVerifyUser_SessionTokenRejected(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	sessionToken, err := stack.sessionCodec.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	c, rec := jsonContext(http.MethodGet, "/auth/users/verify?token="+sessionToken, "")
	if err := stack.auth.VerifyUser(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected a session token to be rejected with 401, got %d", rec.Code)
	}
}

func TestVerifyUser_Success(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	actionToken, err := stack.actionCodec.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	digest := mustHash(t, "StrongPass123!")
	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(userRow(1, "user@example.com", digest, false, false))
	stack.mock.ExpectExec(updateUserQuery).
		WithArgs("user@example.com", digest, false, true, sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := jsonContext(http.MethodGet, "/auth/users/verify?token="+actionToken, "")
	if err := stack.auth.VerifyUser(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if err := stack.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerifyUser_NotRegistered(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	actionToken, err := stack.actionCodec.Issue("ghost@example.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	c, rec := jsonContext(http.MethodGet, "/auth/users/verify?token="+actionToken, "")
	if err := stack.auth.VerifyUser(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// The recovery endpoint must answer identically for known and unknown
// addresses.
func TestRecoverPassword_UniformResponse(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	digest := mustHash(t, "StrongPass123!")
	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(userRow(1, "user@example.com", digest, false, true))
	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	request := func(email string) (int, string) {
		c, rec := jsonContext(http.MethodPost, "/auth/users/"+email+"/password-recovery", "")
		c.SetParamNames("email")
		c.SetParamValues(email)
		if err := stack.auth.RecoverPassword(c); err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		return rec.Code, rec.Body.String()
	}

	knownCode, knownBody := request("user@example.com")
	unknownCode, unknownBody := request("ghost@example.com")

	if knownCode != http.StatusOK || unknownCode != http.StatusOK {
		t.Fatalf("expected 200 for both, got %d and %d", knownCode, unknownCode)
	}
	if knownBody != unknownBody {
		t.Fatalf("responses differ: %q vs %q", knownBody, unknownBody)
	}

	calls := stack.dispatcher.Calls()
	if len(calls) != 1 || calls[0].kind != mailer.KindResetPassword || calls[0].email != "user@example.com" {
		t.Fatalf("expected one reset dispatch for the known address, got %+v", calls)
	}
}

func TestResetPassword_InvalidToken(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	c, rec := jsonContext(http.MethodPost, "/auth/users/reset_password",
		`{"token":"not-a-token","password":"NewPass123!"}`)
	if err := stack.auth.ResetPassword(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestResetPassword_MissingFields(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	c, rec := jsonContext(http.MethodPost, "/auth/users/reset_password",
		`{"token":"abc"}`)
	if err := stack.auth.ResetPassword(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResetPassword_WeakPassword(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	actionToken, err := stack.actionCodec.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	digest := mustHash(t, "OldPass123!")
	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(userRow(1, "user@example.com", digest, false, true))

	c, rec := jsonContext(http.MethodPost, "/auth/users/reset_password",
		`{"token":"`+actionToken+`","password":"weak"}`)
	if err := stack.auth.ResetPassword(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResetPassword_Success(t *testing.T) {
	stack, cleanup := newStack(t)
	defer cleanup()

	actionToken, err := stack.actionCodec.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	digest := mustHash(t, "OldPass123!")
	stack.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(userRow(1, "user@example.com", digest, false, true))
	stack.mock.ExpectExec(updateUserQuery).
		WithArgs("user@example.com", sqlmock.AnyArg(), false, true, sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := jsonContext(http.MethodPost, "/auth/users/reset_password",
		`{"token":"`+actionToken+`","password":"NewPass123!"}`)
	if err := stack.auth.ResetPassword(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if err := stack.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
