package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "skymarshal.session"

// corsMiddleware mirrors services/account-manager/main.go::corsMiddleware
// exactly, including its wildcard origin (this facade is meant to run
// alongside a local/dev frontend, not as a public multi-tenant API).
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// requireSession validates the bearer access token and loads the
// corresponding atmodel.Session from the registry, rejecting the request
// with 401 if either step fails. It replaces the teacher's
// database-session-ID lookup with internal/session.Registry.
func (a *App) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeUnauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := a.facadeAuth.Parse(c.Request.Context(), token)
		if err != nil {
			writeUnauthorized(c, "invalid or expired session")
			c.Abort()
			return
		}

		sess := a.Sessions.GetByHandle(claims.Handle)
		if sess == nil {
			writeUnauthorized(c, "session not found, please log in again")
			c.Abort()
			return
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}
