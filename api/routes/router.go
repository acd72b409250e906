package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solyse/club-flow/api/controllers"
	"github.com/solyse/club-flow/api/middleware"
	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/flow"
	"github.com/solyse/club-flow/internal/scan"
	"github.com/solyse/club-flow/pkg/config"
	"github.com/solyse/club-flow/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient controllers.Pinger,
	cacheClient *cache.Client,
	bootstrapService controllers.BootstrapService,
	flowService flow.Service,
	scanService scan.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Session(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session/bootstrap", controllers.SessionBootstrap(bootstrapService, logg))

		r.Route("/flow", func(r chi.Router) {
			r.Post("/access", controllers.FlowAccess(flowService, logg))
			r.Post("/verify", controllers.FlowVerify(flowService, logg))
			r.Post("/register", controllers.FlowRegister(flowService, logg))
			r.Post("/scan", controllers.FlowScan(scanService, logg))
			r.Get("/items", controllers.FlowItems(cacheClient, logg))
			r.Get("/options", controllers.FlowOptions(cacheClient, logg))
			r.Post("/redirect", controllers.FlowRedirect(flowService, logg))
			r.Post("/restart", controllers.FlowRestart(flowService, scanService, logg))
		})
	})

	return r
}
