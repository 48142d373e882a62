package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/config"
	"campus/internal/database"
	"campus/internal/middleware"
	"campus/internal/platform/account"
	"campus/internal/platform/audit"
	"campus/internal/platform/auth"
	"campus/internal/token"
	"campus/pkg/utils"
)

type testEnv struct {
	app      *fiber.App
	store    *account.InMemStore
	recorder *audit.MemRecorder
	tokens   *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	config.Validate = validator.New()
	cfg := &config.Config{}

	store := account.NewInMemStore()
	recorder := audit.NewMemRecorder()
	tokens := token.NewService("test-secret")
	guard := auth.NewGuard(store, recorder, tokens)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("accounts", account.Store(store))
		c.Locals("audit", audit.Recorder(recorder))
		c.Locals("guard", guard)
		c.Locals("tokens", tokens)
		return c.Next()
	})

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signin", SigninWithPassword)
	authGroup.Get("/token-refresh", middleware.AuthMiddleware, RefreshToken)
	authGroup.Post("/change-password", middleware.AuthMiddleware, ChangePassword)

	user := api.Group("/user", middleware.AuthMiddleware)
	user.Get("/me", GetCurrentUser)
	user.Put("/me", UpdateCurrentUser)

	admin := api.Group("/admin", middleware.AuthMiddleware, middleware.AdminMiddleware)
	admin.Post("/accounts", CreateAccount)
	admin.Get("/accounts", ListAccounts)
	admin.Get("/accounts/:account_id", GetAccount)
	admin.Put("/accounts/:account_id", UpdateAccount)
	admin.Delete("/accounts/:account_id", DeactivateAccount)
	admin.Post("/accounts/:account_id/reset-password", ResetAccountPassword)
	admin.Post("/accounts/:account_id/unlock", UnlockAccount)
	admin.Post("/accounts/:account_id/auth-key", CreateAuthKey)

	return &testEnv{app: app, store: store, recorder: recorder, tokens: tokens}
}

func (env *testEnv) seed(t *testing.T, handle, password, role string) *database.Account {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)

	acct := &database.Account{
		DisplayName:  handle,
		Email:        handle + "@example.edu",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, env.store.Create(context.Background(), acct))
	return acct
}

func (env *testEnv) bearer(t *testing.T, acct *database.Account) string {
	t.Helper()
	signed, err := env.tokens.Generate(acct.ID, acct.Role)
	require.NoError(t, err)
	return "Bearer " + signed
}

func (env *testEnv) request(t *testing.T, method, path, authorization string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestSigninSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct horse", database.RoleStudent)

	resp := env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "alice",
		"password": "correct horse",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Token   AuthToken        `json:"token"`
		Account database.Account `json:"account"`
	}
	decode(t, resp, &body)

	assert.NotEmpty(t, body.Token.AccessToken)
	assert.Equal(t, "Bearer", body.Token.TokenType)
	assert.Equal(t, int(token.SessionTTL.Seconds()), body.Token.ExpiresIn)
	assert.Equal(t, "alice", body.Account.DisplayName)

	// The issued token is accepted by the auth middleware.
	me := env.request(t, fiber.MethodGet, "/api/user/me", "Bearer "+body.Token.AccessToken, nil)
	assert.Equal(t, fiber.StatusOK, me.StatusCode)
}

func TestSigninRejections(t *testing.T) {
	env := newTestEnv(t)
	acct := env.seed(t, "alice", "correct horse", database.RoleStudent)

	resp := env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "alice",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "invalid_credentials", body["error"])

	// Unknown handle is indistinguishable from a wrong password.
	resp = env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "nobody",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	decode(t, resp, &body)
	assert.Equal(t, "invalid_credentials", body["error"])

	acct.IsActive = false
	require.NoError(t, env.store.Update(context.Background(), acct))

	resp = env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "alice",
		"password": "correct horse",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	decode(t, resp, &body)
	assert.Equal(t, "account_inactive", body["error"])
}

func TestSigninMissingFields(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{"handle": "alice"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	env := newTestEnv(t)
	acct := env.seed(t, "alice", "correct horse", database.RoleStudent)

	resp := env.request(t, fiber.MethodGet, "/api/user/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, fiber.MethodGet, "/api/user/me", "Bearer garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// A valid token stops working once the account is deactivated.
	authz := env.bearer(t, acct)
	acct.IsActive = false
	require.NoError(t, env.store.Update(context.Background(), acct))

	resp = env.request(t, fiber.MethodGet, "/api/user/me", authz, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "root", "correct horse", database.RoleAdmin)

	authKey, err := env.store.CreateAuthKey(context.Background(), admin.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/api/admin/accounts", nil)
	req.Header.Set(middleware.HeaderXAPIKey, authKey.Key)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/api/admin/accounts", nil)
	req.Header.Set(middleware.HeaderXAPIKey, "cpak.bogus")
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestListAccountsNegativePaging(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "root", "correct horse", database.RoleAdmin)

	resp := env.request(t, fiber.MethodGet, "/api/admin/accounts?limit=-5&offset=-1", env.bearer(t, admin), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var accounts []database.Account
	decode(t, resp, &accounts)
	assert.Len(t, accounts, 1)
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)
	student := env.seed(t, "alice", "correct horse", database.RoleStudent)

	resp := env.request(t, fiber.MethodGet, "/api/admin/accounts", env.bearer(t, student), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAdminCreateAccount(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "root", "correct horse", database.RoleAdmin)
	authz := env.bearer(t, admin)

	resp := env.request(t, fiber.MethodPost, "/api/admin/accounts", authz, fiber.Map{
		"display_name": "bob",
		"email":        "Bob@Example.edu",
		"role":         database.RoleTeacher,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Account      database.Account `json:"account"`
		TempPassword string           `json:"temp_password"`
	}
	decode(t, resp, &body)

	assert.Equal(t, "bob", body.Account.DisplayName)
	assert.Equal(t, "bob@example.edu", body.Account.Email)
	assert.Equal(t, database.RoleTeacher, body.Account.Role)
	assert.True(t, body.Account.ForcePasswordChange)
	require.Len(t, body.TempPassword, utils.TempPasswordLength)

	// The temp password works for signin right away.
	signin := env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "bob",
		"password": body.TempPassword,
	})
	assert.Equal(t, fiber.StatusOK, signin.StatusCode)

	// Duplicates are reported distinctly.
	resp = env.request(t, fiber.MethodPost, "/api/admin/accounts", authz, fiber.Map{
		"display_name": "bob2",
		"email":        "bob@example.edu",
		"role":         database.RoleStudent,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var dup map[string]string
	decode(t, resp, &dup)
	assert.Equal(t, "duplicate_email", dup["error"])

	resp = env.request(t, fiber.MethodPost, "/api/admin/accounts", authz, fiber.Map{
		"display_name": "bob",
		"email":        "bob2@example.edu",
		"role":         database.RoleStudent,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	decode(t, resp, &dup)
	assert.Equal(t, "duplicate_handle", dup["error"])

	resp = env.request(t, fiber.MethodPost, "/api/admin/accounts", authz, fiber.Map{
		"display_name": "eve",
		"email":        "eve@example.edu",
		"role":         "superuser",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAdminResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "root", "correct horse", database.RoleAdmin)
	alice := env.seed(t, "alice", "old password", database.RoleStudent)
	authz := env.bearer(t, admin)

	resp := env.request(t, fiber.MethodPost, "/api/admin/accounts/"+alice.ID.String()+"/reset-password", authz, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	tempPassword := body["temp_password"]
	require.Len(t, tempPassword, utils.TempPasswordLength)

	signin := env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "alice",
		"password": tempPassword,
	})
	require.Equal(t, fiber.StatusOK, signin.StatusCode)

	var session struct {
		Token AuthToken `json:"token"`
	}
	decode(t, signin, &session)
	assert.True(t, session.Token.ForcePasswordChange)

	// The mandated change clears the flag.
	change := env.request(t, fiber.MethodPost, "/api/auth/change-password",
		"Bearer "+session.Token.AccessToken, fiber.Map{
			"current_password": tempPassword,
			"new_password":     "a brand new password",
		})
	assert.Equal(t, fiber.StatusNoContent, change.StatusCode)

	stored, err := env.store.FindByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.False(t, stored.ForcePasswordChange)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seed(t, "alice", "old password", database.RoleStudent)

	resp := env.request(t, fiber.MethodPost, "/api/auth/change-password", env.bearer(t, alice), fiber.Map{
		"current_password": "not it",
		"new_password":     "whatever new",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "invalid_current_password", body["error"])
}

func TestAdminUnlock(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "root", "correct horse", database.RoleAdmin)
	alice := env.seed(t, "alice", "correct horse", database.RoleStudent)

	for i := 0; i < account.MaxFailedAttempts; i++ {
		env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
			"handle":   "alice",
			"password": "wrong",
		})
	}

	locked := env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "alice",
		"password": "correct horse",
	})
	var body map[string]string
	decode(t, locked, &body)
	require.Equal(t, "account_locked", body["error"])

	resp := env.request(t, fiber.MethodPost, "/api/admin/accounts/"+alice.ID.String()+"/unlock", env.bearer(t, admin), nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	signin := env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "alice",
		"password": "correct horse",
	})
	assert.Equal(t, fiber.StatusOK, signin.StatusCode)
}

func TestAdminUpdateAndDeactivate(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "root", "correct horse", database.RoleAdmin)
	alice := env.seed(t, "alice", "correct horse", database.RoleStudent)
	authz := env.bearer(t, admin)

	resp := env.request(t, fiber.MethodPut, "/api/admin/accounts/"+alice.ID.String(), authz, fiber.Map{
		"email": "alice.new@example.edu",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated database.Account
	decode(t, resp, &updated)
	assert.Equal(t, "alice.new@example.edu", updated.Email)
	assert.Equal(t, database.RoleStudent, updated.Role)

	resp = env.request(t, fiber.MethodDelete, "/api/admin/accounts/"+alice.ID.String(), authz, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	signin := env.request(t, fiber.MethodPost, "/api/auth/signin", "", fiber.Map{
		"handle":   "alice",
		"password": "correct horse",
	})
	assert.Equal(t, fiber.StatusUnauthorized, signin.StatusCode)
	var body map[string]string
	decode(t, signin, &body)
	assert.Equal(t, "account_inactive", body["error"])
}

func TestTokenRefresh(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seed(t, "alice", "correct horse", database.RoleStudent)

	resp := env.request(t, fiber.MethodGet, "/api/auth/token-refresh", env.bearer(t, alice), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var refreshed AuthToken
	decode(t, resp, &refreshed)
	assert.NotEmpty(t, refreshed.AccessToken)

	claims, err := env.tokens.Verify(refreshed.AccessToken)
	require.NoError(t, err)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, alice.ID, id)
}

func TestGetAccountNotFound(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "root", "correct horse", database.RoleAdmin)

	resp := env.request(t, fiber.MethodGet, "/api/admin/accounts/ffffffff-ffff-ffff-ffff-ffffffffffff", env.bearer(t, admin), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = env.request(t, fiber.MethodGet, "/api/admin/accounts/not-a-uuid", env.bearer(t, admin), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
