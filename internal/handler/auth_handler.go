package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/response"
)

// CookieSettings controls the HttpOnly token cookies set next to the JSON
// token pair.
type CookieSettings struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secure     bool
}

type AuthHandler struct {
	userService service.UserService
	cookies     CookieSettings
}

func NewAuthHandler(userService service.UserService, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{userService: userService, cookies: cookies}
}

// RegisterRoutes binds the public token endpoints.
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	token := router.Group("/token")
	{
		token.POST("/", h.Login)
		token.POST("/refresh/", h.Refresh)
		token.POST("/logout/", h.Logout)
	}
}

// Login authenticates a user and returns an access/refresh token pair
// @Summary      Obtain tokens
// @Description  Authenticates by username and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/token/ [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	tokens, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetTokenCookies(c, tokens.Access, tokens.Refresh, h.cookies.AccessTTL, h.cookies.RefreshTTL, h.cookies.Secure)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokens))
}

// Refresh rotates a refresh token
// @Summary      Refresh tokens
// @Description  Consumes a refresh token (body or refresh_token cookie) and issues a new pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshRequest  false  "Refresh token"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Router       /api/token/refresh/ [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	req := service.RefreshRequest{Refresh: h.refreshToken(c)}
	if req.Refresh == "" {
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "validation_error", "refresh token is required"))
		return
	}

	tokens, err := h.userService.Refresh(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetTokenCookies(c, tokens.Access, tokens.Refresh, h.cookies.AccessTTL, h.cookies.RefreshTTL, h.cookies.Secure)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokens))
}

// Logout revokes the refresh token and clears the cookies
// @Summary      Logout
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshRequest  false  "Refresh token"
// @Success      200      {object}  response.Response
// @Router       /api/token/logout/ [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.userService.Logout(c.Request.Context(), h.refreshToken(c)); err != nil {
		respondError(c, err)
		return
	}
	middleware.ClearTokenCookies(c, h.cookies.Secure)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out"}))
}

// refreshToken reads the token from the JSON body, falling back to the cookie.
func (h *AuthHandler) refreshToken(c *gin.Context) string {
	var req service.RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Refresh != "" {
		return req.Refresh
	}
	cookie, _ := c.Cookie("refresh_token")
	return cookie
}
