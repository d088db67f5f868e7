package http

import (
	"net/http"

	"meetwork/internal/auth"
	"meetwork/internal/config"
	"meetwork/internal/http/handler"
	mw "meetwork/internal/http/middleware"
	"meetwork/internal/jobs"
	"meetwork/internal/meeting"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Config   config.Config
	DB       *gorm.DB
	JWT      *auth.JWT
	Gatherer prometheus.Gatherer // nil disables /metrics
	Log      *zap.SugaredLogger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(d.Config.CORSAllowedOrigins, d.Config.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	jh := &handler.JobHandler{
		Store:    jobs.NewStore(d.DB),
		Meetings: &meeting.Repo{DB: d.DB},
		Log:      d.Log,
	}

	r.Route("/jobs", func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.Post("/", jh.Create)
		r.Get("/", jh.List)
		r.Get("/{id}", jh.Get)
	})

	return r
}
