package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"zeen-connect/internal/domain/ports/repository"
	"zeen-connect/internal/usecase"
)

type Server struct {
	payments  usecase.PaymentManager
	ledger    usecase.LedgerService
	payouts   usecase.PayoutScheduler
	resolver  usecase.GatewayResolver
	providers repository.ProviderRepository

	apiKey string
	auth   *AuthManager
	log    *zerolog.Logger
}

func NewServer(
	payments usecase.PaymentManager,
	ledger usecase.LedgerService,
	payouts usecase.PayoutScheduler,
	resolver usecase.GatewayResolver,
	providers repository.ProviderRepository,
	apiKey string,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		payments:  payments,
		ledger:    ledger,
		payouts:   payouts,
		resolver:  resolver,
		providers: providers,
		apiKey:    apiKey,
		auth:      auth,
		log:       &l,
	}
}

// Router assembles all routes. Webhooks are public (gateways authenticate
// through their callback signature); the rest sits behind auth.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// WiPay delivers callbacks as POSTed form data; the client redirect
	// arrives as a GET with the same parameters.
	r.Post("/webhooks/{gateway}/callback", s.handleGatewayCallback)
	r.Get("/webhooks/{gateway}/callback", s.handleGatewayCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/payments", s.handleInitializePayment)
		r.Get("/payments/{id}", s.handleGetPayment)
		r.Post("/payments/{id}/refund", s.handleRefundPayment)

		r.Get("/providers/{id}/balance", s.handleProviderBalance)
		r.Get("/providers/{id}/statement", s.handleProviderStatement)
		r.Get("/providers/{id}/earnings", s.handleProviderEarnings)
		r.Post("/providers/{id}/holds", s.handleHoldFunds)
		r.Post("/holds/{entryID}/release", s.handleReleaseFunds)

		r.Get("/payouts/{id}", s.handleGetPayout)
		r.Post("/payouts/{id}/process", s.handleProcessPayout)
		r.Post("/payouts/{id}/cancel", s.handleCancelPayout)
		r.Post("/payouts/{id}/retry", s.handleRetryPayout)
		r.Post("/payouts/batch", s.handleCreateBatch)
		r.Post("/payouts/batch/{batchID}/process", s.handleProcessBatch)
	})

	return r
}

// authMiddleware accepts either the static API key or an admin session JWT.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if hdr := r.Header.Get("Authorization"); hdr != "" {
			parts := strings.SplitN(hdr, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] == s.apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}

		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
