package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/service"
	"backoffice/pkg/response"
)

// TotalsHandler serves the live calculator used by the document forms.
type TotalsHandler struct{}

func NewTotalsHandler() *TotalsHandler {
	return &TotalsHandler{}
}

type totalsPreviewRequest struct {
	Items []service.LineItemRequest `json:"items"`
}

func (h *TotalsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/totals/preview/", h.Preview)
}

// Preview godoc
// @Summary      Preview totals
// @Description  Computes line and document totals without saving anything. Missing rates default to 18.
// @Tags         totals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      totalsPreviewRequest  true  "Lines being edited"
// @Success      200      {object}  response.Response{data=service.TotalsPreviewResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/totals/preview/ [post]
func (h *TotalsHandler) Preview(c *gin.Context) {
	var req totalsPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, service.PreviewTotals(req.Items)))
}
