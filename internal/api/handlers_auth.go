package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Success      bool   `json:"success"`
	Handle       string `json:"handle"`
	DID          string `json:"did"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// handleLogin implements POST /api/auth/login, grounded on
// services/account-manager/handler.go's bind->validate->service-call
// pattern, with auth.Manager.Login standing in for the teacher's
// accountService call.
func (a *App) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	if err := a.validator.Struct(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	atSession, err := a.AuthMgr.Login(c.Request.Context(), req.Handle, req.Password)
	if err != nil {
		writeError(c, "login failed", err)
		return
	}

	sess := a.Sessions.Create(atSession.Handle, atSession.DID, atSession.AccessJWT, atSession.RefreshJWT)

	access, refresh, _, err := a.facadeAuth.IssueTokens(c.Request.Context(), sess.Handle, string(sess.DID))
	if err != nil {
		writeError(c, "failed to issue session token", err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Success:      true,
		Handle:       sess.Handle,
		DID:          string(sess.DID),
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Handle        string `json:"handle,omitempty"`
	DID           string `json:"did,omitempty"`
}

// handleAuthSession implements GET /api/auth/session. Unlike the rest of
// the authenticated routes it never 401s: an absent/invalid token just
// means {authenticated: false}, matching spec.md §6's signature.
func (a *App) handleAuthSession(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusOK, sessionResponse{Authenticated: false})
		return
	}

	claims, err := a.facadeAuth.Parse(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, sessionResponse{Authenticated: false})
		return
	}

	sess := a.Sessions.GetByHandle(claims.Handle)
	if sess == nil {
		c.JSON(http.StatusOK, sessionResponse{Authenticated: false})
		return
	}

	c.JSON(http.StatusOK, sessionResponse{Authenticated: true, Handle: sess.Handle, DID: string(sess.DID)})
}

type successResponse struct {
	Success bool `json:"success"`
}

// handleLogout implements POST /api/auth/logout: it blacklists the
// presented access token, clears the ATProto session registry entry, and
// removes the persisted session.json (auth.Manager.Logout).
func (a *App) handleLogout(c *gin.Context) {
	sess := a.sessionFromContext(c)
	token := bearerToken(c)

	claims, err := a.facadeAuth.Parse(c.Request.Context(), token)
	if err == nil {
		_ = a.facadeAuth.Revoke(c.Request.Context(), token, "", claims.ExpiresAt.Time)
	}
	if sess != nil {
		a.Sessions.Clear(sess.SessionID)
	}
	_ = a.AuthMgr.Logout()

	c.JSON(http.StatusOK, successResponse{Success: true})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	return header[len(prefix):]
}
