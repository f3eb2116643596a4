package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"
)

type ClientHandler struct {
	clientService service.ClientService
	authz         *middleware.Authenticator
}

func NewClientHandler(clientService service.ClientService, authz *middleware.Authenticator) *ClientHandler {
	return &ClientHandler{clientService: clientService, authz: authz}
}

func (h *ClientHandler) RegisterRoutes(router *gin.RouterGroup) {
	clients := router.Group("/clients")
	{
		clients.GET("/", h.authz.RequirePermission("clients.read"), h.ListClients)
		clients.GET("/:id/", h.authz.RequirePermission("clients.read"), h.GetClient)
		clients.POST("/", h.authz.RequirePermission("clients.write"), h.CreateClient)
		clients.PUT("/:id/", h.authz.RequirePermission("clients.write"), h.UpdateClient)
		clients.DELETE("/:id/", h.authz.RequirePermission("clients.write"), h.DeleteClient)
	}
}

// ListClients godoc
// @Summary      List clients
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Search in name, phone, email and NINEA"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.ClientResponse}
// @Router       /api/clients/ [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	p := pagination.Parse(c)
	clients, total, err := h.clientService.ListClients(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, clients, p.Page, p.Limit, total))
}

// GetClient godoc
// @Summary      Get client
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Client ID"
// @Success      200  {object}  response.Response{data=service.ClientResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/clients/{id}/ [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	client, err := h.clientService.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, client))
}

// CreateClient godoc
// @Summary      Create client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ClientRequest  true  "Client"
// @Success      201      {object}  response.Response{data=service.ClientResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/clients/ [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req service.ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	client, err := h.clientService.CreateClient(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, client))
}

// UpdateClient godoc
// @Summary      Update client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Client ID"
// @Param        payload  body      service.ClientRequest  true  "Client"
// @Success      200      {object}  response.Response{data=service.ClientResponse}
// @Router       /api/clients/{id}/ [put]
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	var req service.ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	client, err := h.clientService.UpdateClient(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, client))
}

// DeleteClient godoc
// @Summary      Delete client
// @Description  Fails with 409 while documents still reference the client
// @Tags         clients
// @Security     BearerAuth
// @Param        id   path  string  true  "Client ID"
// @Success      204
// @Failure      409  {object}  response.Response
// @Router       /api/clients/{id}/ [delete]
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	if err := h.clientService.DeleteClient(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
