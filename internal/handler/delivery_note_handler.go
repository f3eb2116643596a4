package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"
)

type DeliveryNoteHandler struct {
	noteService service.DeliveryNoteService
	authz       *middleware.Authenticator
}

func NewDeliveryNoteHandler(noteService service.DeliveryNoteService, authz *middleware.Authenticator) *DeliveryNoteHandler {
	return &DeliveryNoteHandler{noteService: noteService, authz: authz}
}

func (h *DeliveryNoteHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.authz.RequirePermission("delivery_notes.read")
	write := h.authz.RequirePermission("delivery_notes.write")

	notes := router.Group("/delivery-notes")
	{
		notes.GET("/", read, h.ListDeliveryNotes)
		notes.GET("/:id/", read, h.GetDeliveryNote)
		notes.GET("/:id/pdf/", read, h.DownloadPDF)
		notes.POST("/", write, h.CreateDeliveryNote)
		notes.PUT("/:id/", write, h.UpdateDeliveryNote)
		notes.DELETE("/:id/", write, h.DeleteDeliveryNote)
	}
}

// ListDeliveryNotes godoc
// @Summary      List delivery notes
// @Tags         delivery-notes
// @Security     BearerAuth
// @Produce      json
// @Param        client      query     string  false  "Client ID"
// @Param        search      query     string  false  "Search in number and client name"
// @Param        start_date  query     string  false  "From date (YYYY-MM-DD)"
// @Param        end_date    query     string  false  "To date (YYYY-MM-DD)"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=[]service.DeliveryNoteResponse}
// @Router       /api/delivery-notes/ [get]
func (h *DeliveryNoteHandler) ListDeliveryNotes(c *gin.Context) {
	var q service.DocumentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	p := pagination.Parse(c)

	notes, total, err := h.noteService.ListDeliveryNotes(c.Request.Context(), q, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, notes, p.Page, p.Limit, total))
}

// GetDeliveryNote godoc
// @Summary      Get delivery note
// @Tags         delivery-notes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Delivery note ID"
// @Success      200  {object}  response.Response{data=service.DeliveryNoteResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/delivery-notes/{id}/ [get]
func (h *DeliveryNoteHandler) GetDeliveryNote(c *gin.Context) {
	note, err := h.noteService.GetDeliveryNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, note))
}

// CreateDeliveryNote godoc
// @Summary      Create delivery note
// @Tags         delivery-notes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.DeliveryNoteRequest  true  "Delivery note"
// @Success      201      {object}  response.Response{data=service.DeliveryNoteResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/delivery-notes/ [post]
func (h *DeliveryNoteHandler) CreateDeliveryNote(c *gin.Context) {
	var req service.DeliveryNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	note, err := h.noteService.CreateDeliveryNote(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, note))
}

// UpdateDeliveryNote godoc
// @Summary      Update delivery note
// @Tags         delivery-notes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Delivery note ID"
// @Param        payload  body      service.DeliveryNoteRequest  true  "Delivery note"
// @Success      200      {object}  response.Response{data=service.DeliveryNoteResponse}
// @Router       /api/delivery-notes/{id}/ [put]
func (h *DeliveryNoteHandler) UpdateDeliveryNote(c *gin.Context) {
	var req service.DeliveryNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	note, err := h.noteService.UpdateDeliveryNote(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, note))
}

// DeleteDeliveryNote godoc
// @Summary      Delete delivery note
// @Tags         delivery-notes
// @Security     BearerAuth
// @Param        id   path  string  true  "Delivery note ID"
// @Success      204
// @Router       /api/delivery-notes/{id}/ [delete]
func (h *DeliveryNoteHandler) DeleteDeliveryNote(c *gin.Context) {
	if err := h.noteService.DeleteDeliveryNote(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadPDF godoc
// @Summary      Delivery note PDF
// @Tags         delivery-notes
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path    string  true  "Delivery note ID"
// @Success      200  {file}  file
// @Router       /api/delivery-notes/{id}/pdf/ [get]
func (h *DeliveryNoteHandler) DownloadPDF(c *gin.Context) {
	data, filename, err := h.noteService.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, contentTypePDF, filename, data)
}
