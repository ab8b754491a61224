package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/inkledger-backend/api/controllers"
	billcontrollers "github.com/angelmondragon/inkledger-backend/api/controllers/bills"
	rulecontrollers "github.com/angelmondragon/inkledger-backend/api/controllers/splitrules"
	walletcontrollers "github.com/angelmondragon/inkledger-backend/api/controllers/wallet"
	"github.com/angelmondragon/inkledger-backend/api/middleware"
	"github.com/angelmondragon/inkledger-backend/internal/bills"
	"github.com/angelmondragon/inkledger-backend/pkg/config"
	"github.com/angelmondragon/inkledger-backend/pkg/db"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
	"github.com/angelmondragon/inkledger-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubP controllers.Pinger,
	metricsHandler http.Handler,
	billService bills.Service,
	walletReader walletcontrollers.Reader,
	ruleService rulecontrollers.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	writePolicy := middleware.NewRateLimitPolicy(
		"api",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.ActorLimit,
	)

	deps := []controllers.Dependency{{Name: "db", Pinger: dbP}}
	if redisClient != nil {
		deps = append(deps, controllers.Dependency{Name: "redis", Pinger: redisClient})
	}
	if pubsubP != nil {
		deps = append(deps, controllers.Dependency{Name: "pubsub", Pinger: pubsubP})
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps...))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// Replay records are keyed by the full route pattern, which chi only
		// knows once the leaf matched, so idempotency is attached per route.
		idem := func(next http.Handler) http.Handler { return next }
		if redisClient != nil {
			r.Use(middleware.RateLimit(writePolicy, redisClient, logg))
			idem = middleware.Idempotency(redisClient, cfg.Billing.IdempotencyTTL, logg)
		}
		boss := middleware.RequireRole(logg, enums.ActorRoleBoss)

		r.Get("/ping", controllers.PrivatePing())

		r.With(idem).Post("/appointments/{appointmentId}/bill", billcontrollers.EnsureForAppointment(billService, logg))

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", billcontrollers.List(billService, logg))
			r.With(idem).Post("/manual", billcontrollers.CreateManual(billService, logg))
			r.Route("/{billId}", func(r chi.Router) {
				r.Get("/", billcontrollers.Get(billService, logg))
				r.With(idem).Put("/", billcontrollers.FullEdit(billService, logg))
				r.With(idem).Post("/payments", billcontrollers.RecordPayment(billService, logg))
				r.With(idem).Post("/void", billcontrollers.Void(billService, logg))
				r.With(boss, idem).Delete("/", billcontrollers.Delete(billService, logg))
			})
		})

		r.Route("/members/{memberId}/wallet", func(r chi.Router) {
			r.Get("/", walletcontrollers.Summary(walletReader, logg))
			r.Get("/entries", walletcontrollers.Entries(walletReader, logg))
			r.With(idem).Post("/topups", walletcontrollers.Topup(billService, logg))
			r.With(boss, idem).Post("/refunds", walletcontrollers.Refund(billService, logg))
		})

		r.Route("/split-rules/{artistId}", func(r chi.Router) {
			r.Get("/", rulecontrollers.Get(ruleService, logg))
			r.With(boss, idem).Put("/", rulecontrollers.Set(ruleService, logg))
		})
	})

	return r
}
