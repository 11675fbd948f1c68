package http

import (
	"github.com/gin-gonic/gin"

	"github.com/coffeemasters/authcore/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, webauthnService *service.WebAuthnService, staticDir string) *gin.Engine {
	router := gin.Default()

	// Create handlers
	handlers := NewAuthHandlers(authService, webauthnService)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
		auth.POST("/auth-options", handlers.AuthOptions)
		auth.POST("/logout", handlers.Logout)

		webauthn := auth.Group("/webauthn")
		{
			webauthn.POST("/register-options", handlers.WebAuthnRegisterOptions)
			webauthn.POST("/register-verify", handlers.WebAuthnRegisterVerify)
			webauthn.POST("/login-options", handlers.WebAuthnLoginOptions)
			webauthn.POST("/login-verify", handlers.WebAuthnLoginVerify)
		}
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(SessionMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	// Everything else is the static frontend
	if staticDir != "" {
		router.NoRoute(gin.WrapH(staticHandler(staticDir)))
	}

	return router
}
