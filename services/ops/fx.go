package ops

import (
	"net/http"
	"os"

	"gamecore-events/pkg/health"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("ops.service",
	fx.Provide(
		NewHandler,
		ProvideRouter,
	),
)

// ProvideRouter assembles the gin engine serving both the probe endpoints
// and the admin surface.
func ProvideRouter(h *Handler, hs health.HealthService) http.Handler {
	if os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", hs.Liveness)
	r.GET("/readyz", hs.Readiness)

	h.Register(r)
	return r
}
