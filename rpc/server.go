package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fairbet/native/ledger"
	"fairbet/native/round"
	"fairbet/native/seeds"
)

// Server is the public HTTP surface: seed management, round queries, bet
// placement, the verification endpoint and the round event stream.
type Server struct {
	seeds  *seeds.Engine
	ledger *ledger.Engine
	rounds *round.Engine
	logger *slog.Logger

	limiter *ipLimiter
	healthy func(context.Context) error

	http *http.Server
}

// Options configures the server beyond its engine dependencies.
type Options struct {
	// VerifyRate and VerifyBurst bound verification requests per client IP.
	VerifyRate  float64
	VerifyBurst int
	// Healthy, when set, is consulted by the health endpoint; a non-nil
	// error reports the process unhealthy.
	Healthy func(context.Context) error
}

func NewServer(seedEngine *seeds.Engine, ledgerEngine *ledger.Engine, roundEngine *round.Engine, opts Options) *Server {
	rate := opts.VerifyRate
	if rate <= 0 {
		rate = 5
	}
	burst := opts.VerifyBurst
	if burst <= 0 {
		burst = 10
	}
	return &Server{
		seeds:   seedEngine,
		ledger:  ledgerEngine,
		rounds:  roundEngine,
		logger:  slog.Default(),
		limiter: newIPLimiter(rate, burst),
		healthy: opts.Healthy,
	}
}

// SetLogger overrides the logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger == nil {
		s.logger = slog.Default()
		return
	}
	s.logger = logger
}

// Router assembles the route table. Exposed separately so tests can drive the
// handlers through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otelhttp.NewMiddleware("fairbet-rpc"))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/verify", s.withRateLimit(s.handleVerify))

		r.Get("/seeds/active", s.handleActiveSeed)
		r.Post("/seeds/rotate", s.handleRotateSeed)

		r.Get("/rounds/current", s.handleCurrentRound)
		r.Get("/rounds/{id}", s.handleRoundByID)
		r.Post("/rounds/bets", s.handlePlaceBet)
		r.Post("/rounds/cashout", s.handleCashout)

		r.Get("/wallets/{userId}", s.handleWallet)
	})

	r.Get("/ws/rounds", s.handleRoundStream)
	return r
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthy != nil {
		if err := s.healthy(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
