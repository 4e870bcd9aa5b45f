package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"novelstudio/internal/http/handlers"
	"novelstudio/internal/infra"
	"novelstudio/internal/middleware"
	"novelstudio/internal/notice"
)

// RouterOptions carries the request-scoped collaborators of the router.
type RouterOptions struct {
	Notices       *notice.Catalog
	CountryLookup middleware.CountryLookup
	Logger        *infra.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	notices := opts.Notices
	if notices == nil {
		notices = notice.NewCatalog()
	}
	cfg := app.Config

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.RequestID(opts.Logger),
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.I18N(cfg.DefaultLocale, notices.Normalize, opts.CountryLookup),
	)

	submitLimit := middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", app.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetSession)
				r.Delete("/", app.DeleteSession)
				r.With(submitLimit).Post("/jobs", app.SubmitJob)
				r.Delete("/jobs", app.CancelJob)
				r.Get("/artifacts.zip", app.SessionArtifacts)
			})
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", app.ListHistory)
			r.Get("/{job_id}", app.GetHistoryJob)
		})
	})

	return r
}
