package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/pkg/response"
)

const principalKey = "principal"

// PermissionSource returns the permission codes granted to a role.
type PermissionSource func(ctx context.Context, role string) ([]string, error)

// Authenticator validates access tokens and enforces role and permission
// checks on routes.
type Authenticator struct {
	tokens      *auth.TokenManager
	permissions PermissionSource
	log         *logrus.Logger
}

func NewAuthenticator(tokens *auth.TokenManager, permissions PermissionSource, log *logrus.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, permissions: permissions, log: log}
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies.
// Cross-origin deployments need secure cookies with SameSite=None.
func SetTokenCookies(c *gin.Context, access, refresh string, accessTTL, refreshTTL time.Duration, secure bool) {
	c.SetSameSite(sameSite(secure))
	c.SetCookie("access_token", access, int(accessTTL.Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", refresh, int(refreshTTL.Seconds()), "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies.
func ClearTokenCookies(c *gin.Context, secure bool) {
	c.SetSameSite(sameSite(secure))
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

func sameSite(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// bearerToken reads the Authorization header, falling back to the
// access_token cookie.
func bearerToken(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
			return cookie, ""
		}
		return "", "Authorization is missing"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return strings.TrimSpace(parts[1]), ""
}

// Authenticate rejects requests without a valid access token and stores the
// principal in the gin context.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
			return
		}
		principal, err := a.tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRole lets through principals holding one of roles.
func (a *Authenticator) RequireRole(roles ...billing.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}
		for _, r := range roles {
			if principal.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// RequirePermission checks that the principal's role grants every code in
// required. Admins always pass.
func (a *Authenticator) RequirePermission(required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}
		if principal.IsAdmin() {
			c.Next()
			return
		}

		granted, err := a.permissions(c.Request.Context(), string(principal.Role))
		if err != nil {
			a.log.WithError(err).WithField("role", principal.Role).Error("permission lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}
		set := make(map[string]struct{}, len(granted))
		for _, p := range granted {
			set[p] = struct{}{}
		}
		for _, p := range required {
			if _, ok := set[p]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+p+"'"))
				return
			}
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// SetPrincipal stores p as the authenticated principal.
func SetPrincipal(c *gin.Context, p auth.Principal) {
	c.Set(principalKey, p)
}
