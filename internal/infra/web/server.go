package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"school-payment-ledger/internal/domain/ports/adapter"
	"school-payment-ledger/internal/usecase"
)

type Server struct {
	plans    usecase.PlanUseCase
	recorder usecase.RecorderUseCase
	gateway  usecase.GatewayUseCase
	overdue  usecase.OverdueUseCase
	verifier adapter.PaymentGateway // webhook signature verification only
	currency string                 // default for create-intent requests
	auth     *AuthManager
	log      *zerolog.Logger
}

func NewServer(
	plans usecase.PlanUseCase,
	recorder usecase.RecorderUseCase,
	gateway usecase.GatewayUseCase,
	overdue usecase.OverdueUseCase,
	verifier adapter.PaymentGateway,
	currency string,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		plans:    plans,
		recorder: recorder,
		gateway:  gateway,
		overdue:  overdue,
		verifier: verifier,
		currency: currency,
		auth:     auth,
		log:      logger,
	}
}

// Router builds the API surface. The webhook endpoint is deliberately outside
// the auth middleware: its only authentication is the gateway signature.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/gateway/webhook", s.webhookHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require(RoleAdmin, RoleStaff))
			r.Post("/payment-plans", s.planCreateHandler())
			r.Put("/payment-plans/{id}/status", s.planForceStatusHandler())
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require())
			r.Get("/payment-plans/{id}", s.planGetHandler())
			r.Get("/payment-plans/student/{studentID}", s.plansByStudentHandler())
			r.Get("/payment-plans/course/{courseID}", s.plansByCourseHandler())
			r.Post("/installments/{id}/pay", s.installmentPayHandler())
			r.Get("/installments/overdue", s.overdueListHandler())
			r.Get("/installments/upcoming", s.upcomingListHandler())
			r.Post("/gateway/create-intent", s.createIntentHandler())
		})
	})

	return r
}
