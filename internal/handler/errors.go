package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/response"
)

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind billing.Kind) int {
	switch kind {
	case billing.KindNotFound:
		return http.StatusNotFound
	case billing.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// respondError writes err as a JSON error. Unexpected errors are attached to
// the gin context so the request logger records them, and their text is not
// sent to the client.
func respondError(c *gin.Context, err error) {
	var domain *billing.Error
	switch {
	case errors.As(err, &domain):
		status := statusFor(domain.Kind)
		c.JSON(status, response.ErrorWithCode(status, domain.Rule, domain.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, response.ErrorWithCode(http.StatusUnauthorized, "invalid_credentials", err.Error()))
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, response.ErrorWithCode(http.StatusUnauthorized, "token_not_valid", err.Error()))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "internal server error"))
	}
}

// bindError answers a payload that failed to decode or validate.
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, billing.ErrValidation.Rule, "Invalid request payload: "+err.Error()))
}

func actor(c *gin.Context) auth.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}

const contentTypePDF = "application/pdf"

// attachment sends data as a file download.
func attachment(c *gin.Context, contentType, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}
