package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"
)

type AuditHandler struct {
	auditService service.AuditService
	authz        *middleware.Authenticator
}

func NewAuditHandler(auditService service.AuditService, authz *middleware.Authenticator) *AuditHandler {
	return &AuditHandler{auditService: auditService, authz: authz}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit-logs/", h.authz.RequirePermission("audit.read"), h.GetAuditLogs)
}

// GetAuditLogs godoc
// @Summary      Audit trail
// @Description  Newest entries first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action     query     string  false  "Action code, e.g. CREATE_INVOICE or LOGIN"
// @Param        entity_id  query     string  false  "Entity ID"
// @Param        user_id    query     string  false  "User ID"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/audit-logs/ [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	var q service.AuditListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), q, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, logs, p.Page, p.Limit, total))
}
