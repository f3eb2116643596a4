package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/auth"
	"backoffice/internal/export"
	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	authz          *middleware.Authenticator
	stamp          func() string
}

// NewInvoiceHandler wires the invoice endpoints. stamp formats the date used
// in export filenames.
func NewInvoiceHandler(invoiceService service.InvoiceService, authz *middleware.Authenticator, stamp func() string) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, authz: authz, stamp: stamp}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.authz.RequirePermission("invoices.read")
	write := h.authz.RequirePermission("invoices.write")

	invoices := router.Group("/invoices")
	{
		invoices.GET("/", read, h.ListInvoices)
		invoices.GET("/dashboard/", h.authz.RequirePermission("dashboard.read"), h.Dashboard)
		invoices.GET("/export/", read, h.Export)
		invoices.GET("/:id/", read, h.GetInvoice)
		invoices.GET("/:id/pdf/", read, h.DownloadPDF)
		invoices.POST("/", write, h.CreateInvoice)
		invoices.PUT("/:id/", write, h.UpdateInvoice)
		invoices.DELETE("/:id/", write, h.DeleteInvoice)
		invoices.POST("/:id/finalize/", write, h.Finalize)
		invoices.POST("/:id/mark_paid/", write, h.MarkPaid)
		invoices.POST("/:id/cancel/", write, h.Cancel)
	}
}

// ListInvoices godoc
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status      query     string  false  "draft, finalized, paid or cancelled"
// @Param        client      query     string  false  "Client ID"
// @Param        search      query     string  false  "Search in number and client name"
// @Param        start_date  query     string  false  "From date (YYYY-MM-DD)"
// @Param        end_date    query     string  false  "To date (YYYY-MM-DD)"
// @Param        ordering    query     string  false  "date, -date, total_ttc, -total_ttc, number, -number"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=[]service.InvoiceResponse}
// @Router       /api/invoices/ [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	var q service.DocumentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	p := pagination.Parse(c)

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), q, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, invoices, p.Page, p.Limit, total))
}

// GetInvoice godoc
// @Summary      Get invoice
// @Description  Returns the invoice with its lines, totals and the actions legal from its status
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/ [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// CreateInvoice godoc
// @Summary      Create invoice
// @Description  Creates a draft invoice. Number and totals are assigned by the server.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                  false  "Replay protection key"
// @Param        payload          body      service.InvoiceRequest  true   "Invoice"
// @Success      201              {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400              {object}  response.Response
// @Failure      404              {object}  response.Response
// @Router       /api/invoices/ [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// UpdateInvoice godoc
// @Summary      Update draft invoice
// @Description  Replaces header and lines of a draft invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Invoice ID"
// @Param        payload  body      service.InvoiceRequest  true  "Invoice"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/{id}/ [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req service.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	invoice, err := h.invoiceService.UpdateInvoice(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DeleteInvoice godoc
// @Summary      Delete draft invoice
// @Tags         invoices
// @Security     BearerAuth
// @Param        id   path  string  true  "Invoice ID"
// @Success      204
// @Failure      400  {object}  response.Response
// @Router       /api/invoices/{id}/ [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Finalize godoc
// @Summary      Finalize invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/invoices/{id}/finalize/ [post]
func (h *InvoiceHandler) Finalize(c *gin.Context) {
	h.transition(c, h.invoiceService.Finalize)
}

// MarkPaid godoc
// @Summary      Mark invoice as paid
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/invoices/{id}/mark_paid/ [post]
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	h.transition(c, h.invoiceService.MarkPaid)
}

// Cancel godoc
// @Summary      Cancel draft invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/invoices/{id}/cancel/ [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.transition(c, h.invoiceService.Cancel)
}

func (h *InvoiceHandler) transition(c *gin.Context, apply func(ctx context.Context, p auth.Principal, id string) (service.InvoiceResponse, error)) {
	invoice, err := apply(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// Dashboard godoc
// @Summary      Invoice dashboard
// @Description  Monthly totals and counts per status
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.InvoiceDashboard}
// @Router       /api/invoices/dashboard/ [get]
func (h *InvoiceHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.invoiceService.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, dashboard))
}

// Export godoc
// @Summary      Export invoices
// @Description  Downloads the filtered invoices as an Excel workbook
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        status      query  string  false  "Status filter"
// @Param        client      query  string  false  "Client ID"
// @Param        start_date  query  string  false  "From date (YYYY-MM-DD)"
// @Param        end_date    query  string  false  "To date (YYYY-MM-DD)"
// @Success      200         {file}  file
// @Router       /api/invoices/export/ [get]
func (h *InvoiceHandler) Export(c *gin.Context) {
	var q service.DocumentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	data, err := h.invoiceService.Export(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, export.ContentTypeXLSX, fmt.Sprintf("factures_%s.xlsx", h.stamp()), data)
}

// DownloadPDF godoc
// @Summary      Invoice PDF
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path    string  true  "Invoice ID"
// @Success      200  {file}  file
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/pdf/ [get]
func (h *InvoiceHandler) DownloadPDF(c *gin.Context) {
	data, filename, err := h.invoiceService.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, contentTypePDF, filename, data)
}
