package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/resumeparser-backend/api/controllers"
	"github.com/angelmondragon/resumeparser-backend/api/middleware"
	"github.com/angelmondragon/resumeparser-backend/internal/resumes"
	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	"github.com/angelmondragon/resumeparser-backend/pkg/db"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
)

// NewRouter wires the HTTP surface. cacheP is nil when no status cache is
// configured; gatherer may be nil to skip the metrics endpoint.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cacheP db.Pinger,
	resumeService resumes.Service,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Get("/", controllers.Root(cfg))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	prefix := cfg.App.APIPrefix
	if prefix == "" {
		prefix = "/"
	}
	r.Route(prefix, func(r chi.Router) {
		r.Get("/health", controllers.Health(cfg, logg, dbP, cacheP))

		r.Route("/resumes", func(r chi.Router) {
			r.Post("/upload", controllers.ResumeUpload(resumeService, cfg.Upload, logg))
			r.Get("/{id}", controllers.ResumeGet(resumeService, logg))
			r.Get("/{id}/status", controllers.ResumeStatus(resumeService, logg))
		})
	})

	return r
}
