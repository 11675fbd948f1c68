package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coffeemasters/authcore/adapters/hasher"
	"github.com/coffeemasters/authcore/adapters/ledger"
	"github.com/coffeemasters/authcore/adapters/sessions"
	"github.com/coffeemasters/authcore/adapters/store"
	"github.com/coffeemasters/authcore/adapters/tokenizer"
	"github.com/coffeemasters/authcore/ports"
	"github.com/coffeemasters/authcore/service"
)

const (
	testRPID   = "localhost"
	testOrigin = "http://localhost:5050"
)

func newTestRouter(t *testing.T) (*gin.Engine, ports.AccountStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	accounts := store.NewMemoryAccountStore()

	authService := service.NewAuthService(
		accounts,
		sessions.NewMemorySessionStore(),
		tokenizer.NewJWTTokenizer(key),
		hasher.NewBcryptHasherWithCost(bcrypt.MinCost),
		nil,
	)

	webauthnService, err := service.NewWebAuthnService(
		service.WebAuthnConfig{
			RPID:      testRPID,
			RPName:    "Coffee Masters",
			RPOrigins: []string{testOrigin},
		},
		accounts,
		ledger.NewMemoryChallengeLedger(),
		nil,
	)
	require.NoError(t, err)

	return SetupRouter(authService, webauthnService, ""), accounts
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}

	req := httptest.NewRequest(method, path, &reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookie)
	return nil
}

func TestRegisterLoginLogout(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/register", gin.H{
		"name": "Ana", "email": "ana@example.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["ok"])

	// Duplicate registration conflicts with a generic message.
	w = doJSON(t, router, http.MethodPost, "/auth/register", gin.H{
		"name": "Ana", "email": "ana@example.com", "password": "Other456",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User already exists", decodeBody(t, w)["message"])

	// Wrong password and unknown email are word-for-word identical.
	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "ana@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	wrongMsg := decodeBody(t, w)["message"]

	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "ghost@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, wrongMsg, decodeBody(t, w)["message"])

	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email": "ana@example.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ana@example.com", body["email"])
	assert.Equal(t, "Ana", body["name"])
	cookie := sessionCookie(t, w)

	// The cookie authenticates API requests until logout.
	w = doJSON(t, router, http.MethodGet, "/api/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", decodeBody(t, w)["email"])

	w = doJSON(t, router, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Logging out again, or with no cookie at all, still succeeds.
	w = doJSON(t, router, http.MethodPost, "/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterRejectsBadBody(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/register", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/auth/login", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthOptionsNegotiation(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/register", gin.H{
		"name": "Ana", "email": "ana@example.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	known := doJSON(t, router, http.MethodPost, "/auth/auth-options", gin.H{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, known.Code)
	unknown := doJSON(t, router, http.MethodPost, "/auth/auth-options", gin.H{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, unknown.Code)

	// Identical bodies: account existence does not leak.
	assert.JSONEq(t, `{"password":true,"webauthn":false}`, known.Body.String())
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestWebAuthnRegistrationAndLogin(t *testing.T) {
	router, accounts := newTestRouter(t)
	ctx := context.Background()

	fake, err := service.NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	// Passkey registration creates the account; no password involved.
	w := doJSON(t, router, http.MethodPost, "/auth/webauthn/register-options", gin.H{
		"email": "ana@example.com", "name": "Ana",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var creation protocol.CredentialCreation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &creation))
	require.NotEmpty(t, creation.Response.Challenge)

	attestation, err := fake.Attest(creation.Response.Challenge, testOrigin)
	require.NoError(t, err)

	w = doJSON(t, router, http.MethodPost, "/auth/webauthn/register-verify", attestation.Raw)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["ok"])
	registerCookie := sessionCookie(t, w)

	// Registration established a session.
	w = doJSON(t, router, http.MethodGet, "/api/me", nil, registerCookie)
	require.Equal(t, http.StatusOK, w.Code)

	// Negotiation now offers the passkey.
	w = doJSON(t, router, http.MethodPost, "/auth/auth-options", gin.H{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"password":true,"webauthn":true}`, w.Body.String())

	account, err := accounts.FindAccount(ctx, "ana@example.com")
	require.NoError(t, err)

	// Passkey login.
	w = doJSON(t, router, http.MethodPost, "/auth/webauthn/login-options", gin.H{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	var request protocol.CredentialAssertion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &request))

	assertion, err := fake.Assert(request.Response.Challenge, []byte(account.ID), testOrigin)
	require.NoError(t, err)
	assertionBody, err := json.Marshal(assertion.Raw)
	require.NoError(t, err)

	w = doJSON(t, router, http.MethodPost, "/auth/webauthn/login-verify", json.RawMessage(assertionBody))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ana@example.com", body["email"])
	assert.Equal(t, "Ana", body["name"])
	sessionCookie(t, w)

	// Replaying the exact response is rejected: the challenge is spent.
	w = doJSON(t, router, http.MethodPost, "/auth/webauthn/login-verify", json.RawMessage(assertionBody))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebAuthnLoginOptionsUnknownIdentity(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/webauthn/login-options", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Your login credentials are invalid.", decodeBody(t, w)["message"])
}

func TestWebAuthnVerifyRejectsGarbage(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/webauthn/register-verify", gin.H{"nope": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/auth/webauthn/login-verify", gin.H{"nope": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
