package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ageme/internal/http/handlers"
	"ageme/internal/infra/geoip"
	"ageme/internal/middleware"
)

// NewRouter assembles the route table and middleware chain.
func NewRouter(app *handlers.App, geo geoip.CountryResolver) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimiddleware.RealIP,
		middleware.RequestID,
		middleware.CORS(app.Config.CORSOrigins),
		middleware.Logger(app.Logger, geo),
		middleware.DebugEcho,
		chimiddleware.Recoverer,
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/api/capabilities", app.Capabilities)
	r.Post("/api/age-face", app.AgeFace)

	r.NotFound(app.NotFound)
	r.MethodNotAllowed(app.NotFound)

	return r
}
