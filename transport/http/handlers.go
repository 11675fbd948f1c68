package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/service"
)

// SessionCookie is the cookie the session token is written to and read from.
const SessionCookie = "auth_session"

// AuthHandlers contains HTTP handlers for the auth endpoints.
type AuthHandlers struct {
	authService     *service.AuthService
	webauthnService *service.WebAuthnService
	cookieMaxAge    int
	logger          *slog.Logger
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(authService *service.AuthService, webauthnService *service.WebAuthnService) *AuthHandlers {
	return &AuthHandlers{
		authService:     authService,
		webauthnService: webauthnService,
		cookieMaxAge:    int(service.DefaultSessionTTL.Seconds()),
		logger:          slog.Default(),
	}
}

// Register handles POST /auth/register.
func (h *AuthHandlers) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "Invalid request"})
		return
	}

	account, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrAccountExists) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "message": "User already exists"})
			return
		}
		h.logger.Error("registration failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "Registration failed"})
		return
	}

	h.setSession(c, account)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "Invalid request"})
		return
	}

	account, err := h.authService.PasswordLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Wrong password and unknown email are deliberately the same answer.
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "Your login credentials are invalid."})
		return
	}

	h.setSession(c, account)
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": account.Email, "name": account.Name})
}

// AuthOptions handles POST /auth/auth-options.
func (h *AuthHandlers) AuthOptions(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "Invalid request"})
		return
	}

	options, err := h.authService.AuthOptions(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("auth options negotiation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "Negotiation failed"})
		return
	}

	c.JSON(http.StatusOK, options)
}

// WebAuthnRegisterOptions handles POST /auth/webauthn/register-options.
func (h *AuthHandlers) WebAuthnRegisterOptions(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Name  string `json:"name"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "Invalid request"})
		return
	}

	options, err := h.webauthnService.BeginRegistration(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		h.logger.Error("begin registration failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "Failed to create registration options"})
		return
	}

	c.JSON(http.StatusOK, options)
}

// WebAuthnRegisterVerify handles POST /auth/webauthn/register-verify.
func (h *AuthHandlers) WebAuthnRegisterVerify(c *gin.Context) {
	response, err := protocol.ParseCredentialCreationResponseBody(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "Invalid attestation response"})
		return
	}

	account, _, err := h.webauthnService.FinishRegistration(c.Request.Context(), response)
	if err != nil {
		h.failCeremony(c, err)
		return
	}

	h.setSession(c, account)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// WebAuthnLoginOptions handles POST /auth/webauthn/login-options. The email
// is optional; without one the options target discoverable credentials.
func (h *AuthHandlers) WebAuthnLoginOptions(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	// An empty body selects the anonymous flow.
	_ = c.ShouldBindJSON(&req)

	options, err := h.webauthnService.BeginLogin(c.Request.Context(), req.Email)
	if err != nil {
		// No account or no passkeys both get the same generic answer.
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "Your login credentials are invalid."})
		return
	}

	c.JSON(http.StatusOK, options)
}

// WebAuthnLoginVerify handles POST /auth/webauthn/login-verify.
func (h *AuthHandlers) WebAuthnLoginVerify(c *gin.Context) {
	response, err := protocol.ParseCredentialRequestResponseBody(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "Invalid assertion response"})
		return
	}

	account, err := h.webauthnService.FinishLogin(c.Request.Context(), response)
	if err != nil {
		h.failCeremony(c, err)
		return
	}

	h.setSession(c, account)
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": account.Email, "name": account.Name})
}

// Logout handles POST /auth/logout. Destroying an absent session succeeds.
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, err := c.Cookie(SessionCookie)
	if err == nil && token != "" {
		if err := h.authService.DestroySession(c.Request.Context(), token); err != nil {
			h.logger.Error("logout failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "Logout failed"})
			return
		}
	}

	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me handles GET /api/me for an authenticated session.
func (h *AuthHandlers) Me(c *gin.Context) {
	account, exists := c.Get(accountContextKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "Unauthenticated"})
		return
	}

	acct := account.(*core.Account)
	c.JSON(http.StatusOK, gin.H{"email": acct.Email, "name": acct.Name})
}

// failCeremony maps a ceremony failure to its response. Clone detection and
// origin mismatches are logged distinctly for the audit trail but answered
// generically, like every other verification failure.
func (h *AuthHandlers) failCeremony(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrPossibleClone):
		h.logger.Warn("possible cloned authenticator", "error", err)
	case errors.Is(err, core.ErrOriginMismatch):
		h.logger.Warn("ceremony origin mismatch", "error", err)
	case errors.Is(err, core.ErrCredentialExists):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "message": "Credential already registered"})
		return
	default:
		h.logger.Info("ceremony verification failed", "error", err)
	}
	c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "Verification failed"})
}

// setSession issues a session for the account and writes its token into the
// session cookie.
func (h *AuthHandlers) setSession(c *gin.Context, account *core.Account) {
	token, _, err := h.authService.CreateSession(c.Request.Context(), account)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		return
	}
	c.SetCookie(SessionCookie, token, h.cookieMaxAge, "/", "", false, true)
}
