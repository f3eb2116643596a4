package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/auth"
	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"
)

type ProformaHandler struct {
	proformaService service.ProformaService
	authz           *middleware.Authenticator
}

func NewProformaHandler(proformaService service.ProformaService, authz *middleware.Authenticator) *ProformaHandler {
	return &ProformaHandler{proformaService: proformaService, authz: authz}
}

func (h *ProformaHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.authz.RequirePermission("proformas.read")
	write := h.authz.RequirePermission("proformas.write")

	proformas := router.Group("/proformas")
	{
		proformas.GET("/", read, h.ListProformas)
		proformas.GET("/stats/", read, h.Stats)
		proformas.GET("/:id/", read, h.GetProforma)
		proformas.GET("/:id/pdf/", read, h.DownloadPDF)
		proformas.POST("/", write, h.CreateProforma)
		proformas.PUT("/:id/", write, h.UpdateProforma)
		proformas.DELETE("/:id/", write, h.DeleteProforma)
		proformas.POST("/:id/send/", write, h.Send)
		proformas.POST("/:id/accept/", write, h.Accept)
		proformas.POST("/:id/reject/", write, h.Reject)
		// Conversion creates an invoice, so it needs both write permissions.
		proformas.POST("/:id/convert_to_invoice/", write, h.authz.RequirePermission("invoices.write"), h.ConvertToInvoice)
	}
}

// ListProformas godoc
// @Summary      List proformas
// @Tags         proformas
// @Security     BearerAuth
// @Produce      json
// @Param        status      query     string  false  "draft, sent, accepted, rejected or converted"
// @Param        client      query     string  false  "Client ID"
// @Param        search      query     string  false  "Search in number and client name"
// @Param        start_date  query     string  false  "From date (YYYY-MM-DD)"
// @Param        end_date    query     string  false  "To date (YYYY-MM-DD)"
// @Param        ordering    query     string  false  "date, -date, total_ttc, -total_ttc, number, -number"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=[]service.ProformaResponse}
// @Router       /api/proformas/ [get]
func (h *ProformaHandler) ListProformas(c *gin.Context) {
	var q service.DocumentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	p := pagination.Parse(c)

	proformas, total, err := h.proformaService.ListProformas(c.Request.Context(), q, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, proformas, p.Page, p.Limit, total))
}

// GetProforma godoc
// @Summary      Get proforma
// @Tags         proformas
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Proforma ID"
// @Success      200  {object}  response.Response{data=service.ProformaResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/proformas/{id}/ [get]
func (h *ProformaHandler) GetProforma(c *gin.Context) {
	proforma, err := h.proformaService.GetProforma(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, proforma))
}

// CreateProforma godoc
// @Summary      Create proforma
// @Tags         proformas
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                   false  "Replay protection key"
// @Param        payload          body      service.ProformaRequest  true   "Proforma"
// @Success      201              {object}  response.Response{data=service.ProformaResponse}
// @Failure      400              {object}  response.Response
// @Router       /api/proformas/ [post]
func (h *ProformaHandler) CreateProforma(c *gin.Context) {
	var req service.ProformaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	proforma, err := h.proformaService.CreateProforma(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, proforma))
}

// UpdateProforma godoc
// @Summary      Update draft proforma
// @Tags         proformas
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Proforma ID"
// @Param        payload  body      service.ProformaRequest  true  "Proforma"
// @Success      200      {object}  response.Response{data=service.ProformaResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/proformas/{id}/ [put]
func (h *ProformaHandler) UpdateProforma(c *gin.Context) {
	var req service.ProformaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	proforma, err := h.proformaService.UpdateProforma(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, proforma))
}

// DeleteProforma godoc
// @Summary      Delete draft proforma
// @Tags         proformas
// @Security     BearerAuth
// @Param        id   path  string  true  "Proforma ID"
// @Success      204
// @Failure      400  {object}  response.Response
// @Router       /api/proformas/{id}/ [delete]
func (h *ProformaHandler) DeleteProforma(c *gin.Context) {
	if err := h.proformaService.DeleteProforma(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Send godoc
// @Summary      Send proforma
// @Tags         proformas
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Proforma ID"
// @Success      200  {object}  response.Response{data=service.ProformaResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/proformas/{id}/send/ [post]
func (h *ProformaHandler) Send(c *gin.Context) {
	h.transition(c, h.proformaService.Send)
}

// Accept godoc
// @Summary      Accept proforma
// @Tags         proformas
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Proforma ID"
// @Success      200  {object}  response.Response{data=service.ProformaResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/proformas/{id}/accept/ [post]
func (h *ProformaHandler) Accept(c *gin.Context) {
	h.transition(c, h.proformaService.Accept)
}

// Reject godoc
// @Summary      Reject proforma
// @Tags         proformas
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Proforma ID"
// @Success      200  {object}  response.Response{data=service.ProformaResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/proformas/{id}/reject/ [post]
func (h *ProformaHandler) Reject(c *gin.Context) {
	h.transition(c, h.proformaService.Reject)
}

func (h *ProformaHandler) transition(c *gin.Context, apply func(ctx context.Context, p auth.Principal, id string) (service.ProformaResponse, error)) {
	proforma, err := apply(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, proforma))
}

// ConvertToInvoice godoc
// @Summary      Convert proforma to invoice
// @Description  Creates a draft invoice with the proforma's lines. A proforma converts at most once.
// @Tags         proformas
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Proforma ID"
// @Success      201  {object}  response.Response{data=service.ConversionResult}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/proformas/{id}/convert_to_invoice/ [post]
func (h *ProformaHandler) ConvertToInvoice(c *gin.Context) {
	result, err := h.proformaService.ConvertToInvoice(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// Stats godoc
// @Summary      Proforma statistics
// @Tags         proformas
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.ProformaStats}
// @Router       /api/proformas/stats/ [get]
func (h *ProformaHandler) Stats(c *gin.Context) {
	stats, err := h.proformaService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// DownloadPDF godoc
// @Summary      Proforma PDF
// @Tags         proformas
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path    string  true  "Proforma ID"
// @Success      200  {file}  file
// @Router       /api/proformas/{id}/pdf/ [get]
func (h *ProformaHandler) DownloadPDF(c *gin.Context) {
	data, filename, err := h.proformaService.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, contentTypePDF, filename, data)
}
