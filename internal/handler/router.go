package handler

import (
	"github.com/gin-gonic/gin"

	"backoffice/internal/middleware"
)

// RouteRegistrar is a handler owning a set of authenticated routes.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

// RegisterAPI mounts everything under /api. Token endpoints are public; every
// other route requires a valid access token and honours Idempotency-Key.
func RegisterAPI(engine *gin.Engine, authn *middleware.Authenticator, idem *middleware.Idempotency, tokens *AuthHandler, handlers ...RouteRegistrar) {
	api := engine.Group("/api")
	tokens.RegisterRoutes(api)

	secured := api.Group("", authn.Authenticate(), idem.Handler())
	for _, h := range handlers {
		h.RegisterRoutes(secured)
	}
}
