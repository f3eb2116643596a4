package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/billing"
	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"
)

type UserHandler struct {
	userService service.UserService
	authz       *middleware.Authenticator
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService, authz *middleware.Authenticator) *UserHandler {
	return &UserHandler{userService: userService, authz: authz}
}

// RegisterRoutes binds the account endpoints. me and change_my_password only
// need a valid token; changing accounts is reserved to admins.
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/accounts/users")
	{
		users.GET("/me/", h.GetMe)
		users.POST("/change_my_password/", h.ChangeMyPassword)

		users.GET("/", h.authz.RequirePermission("users.read"), h.ListUsers)
		users.GET("/:id/", h.authz.RequirePermission("users.read"), h.GetUser)

		admin := users.Group("", h.authz.RequireRole(billing.RoleAdmin))
		admin.POST("/", h.authz.RequirePermission("users.write"), h.CreateUser)
		admin.PUT("/:id/", h.authz.RequirePermission("users.write"), h.UpdateUser)
		admin.DELETE("/:id/", h.authz.RequirePermission("users.delete"), h.DeleteUser)
		admin.POST("/:id/change_password/", h.authz.RequirePermission("users.write"), h.ChangePassword)
	}
}

// GetMe returns the current user with their permissions
// @Summary      Current user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/accounts/users/me/ [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	me, err := h.userService.Me(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, me))
}

// ListUsers returns a paginated list of users
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        search     query     string  false  "Search in username, names and email"
// @Param        role       query     string  false  "admin or agent"
// @Param        is_active  query     bool    false  "Filter on active flag"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=[]service.UserResponse}
// @Router       /api/accounts/users/ [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	var q service.UserListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	p := pagination.Parse(c)

	users, total, err := h.userService.ListUsers(c.Request.Context(), q, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, users, p.Page, p.Limit, total))
}

// GetUser returns one user
// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/accounts/users/{id}/ [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// CreateUser creates an account
// @Summary      Create user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateUserRequest  true  "User"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/accounts/users/ [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// UpdateUser changes the fields present in the payload
// @Summary      Update user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateUserRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/accounts/users/{id}/ [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser removes an account
// @Summary      Delete user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/accounts/users/{id}/ [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "User deleted successfully"}))
}

// ChangePassword sets another user's password
// @Summary      Change a user's password
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "User ID"
// @Param        payload  body      service.ChangePasswordRequest  true  "New password"
// @Success      200      {object}  response.Response
// @Router       /api/accounts/users/{id}/change_password/ [post]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.userService.ChangePassword(c.Request.Context(), actor(c), c.Param("id"), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Mot de passe modifié avec succès"}))
}

// ChangeMyPassword changes the current user's password
// @Summary      Change my password
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ChangeMyPasswordRequest  true  "Old and new password"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /api/accounts/users/change_my_password/ [post]
func (h *UserHandler) ChangeMyPassword(c *gin.Context) {
	var req service.ChangeMyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.userService.ChangeMyPassword(c.Request.Context(), actor(c), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Mot de passe modifié avec succès"}))
}
