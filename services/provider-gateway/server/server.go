package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fairbet/native/ledger"
	"fairbet/observability/metrics"
)

// Server terminates provider wallet callbacks. Providers deliver bet, result
// and rollback callbacks at least once; every mutation is keyed by the
// provider's transaction id and lands at most once, with replays answered
// from the journal so the provider always sees the same response.
type Server struct {
	ledger       *ledger.Engine
	logger       *slog.Logger
	metrics      *metrics.CasinoMetrics
	sharedSecret string
}

// Options configures the callback surface.
type Options struct {
	// SharedSecret, when set, must match the X-Provider-Secret header on
	// every callback.
	SharedSecret string
}

func New(ledgerEngine *ledger.Engine, opts Options) *Server {
	return &Server{
		ledger:       ledgerEngine,
		logger:       slog.Default(),
		metrics:      metrics.Casino(),
		sharedSecret: opts.SharedSecret,
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

// SetMetrics overrides the metrics sink. Nil disables recording.
func (s *Server) SetMetrics(m *metrics.CasinoMetrics) { s.metrics = m }

// Router assembles the callback route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/callbacks", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/bet", s.handleBet)
		r.Post("/result", s.handleResult)
		r.Post("/rollback", s.handleRollback)
	})
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sharedSecret != "" {
			provided := r.Header.Get("X-Provider-Secret")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(s.sharedSecret)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid provider secret")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// callbackRequest is the common provider callback body. Amounts are integer
// cents and always positive; the endpoint decides the direction. Pool names
// the balance pool the mutation targets and defaults to the real pool.
type callbackRequest struct {
	ExternalTxnID string `json:"externalTxnId"`
	UserID        string `json:"userId"`
	Amount        int64  `json:"amount"`
	Pool          string `json:"pool,omitempty"`
	GameID        string `json:"gameId,omitempty"`
	RoundID       string `json:"roundId,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (req callbackRequest) balancePool() (ledger.BalancePool, error) {
	if strings.TrimSpace(req.Pool) == "" {
		return ledger.PoolReal, nil
	}
	return ledger.ParsePool(req.Pool)
}

// callbackResponse echoes the committed state back to the provider.
// Duplicate deliveries receive the original transaction and balance, so the
// response is byte-stable across redeliveries.
type callbackResponse struct {
	TransactionID string `json:"transactionId"`
	Balance       int64  `json:"balance"`
	Duplicate     bool   `json:"duplicate"`
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, ledger.ExternalDebit, ledger.TxnBet, "provider bet")
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, ledger.ExternalCredit, ledger.TxnWin, "provider result")
}

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, direction ledger.ExternalDirection, txnType, description string) {
	started := time.Now()
	defer func() { s.metrics.ObserveCallbackDuration(time.Since(started).Seconds()) }()

	req, ok := decodeCallback(w, r)
	if !ok {
		return
	}
	pool, err := req.balancePool()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref := ledger.Reference{Type: "provider_round", ID: req.RoundID}
	result, err := s.ledger.ApplyExternal(ledger.ExternalMutation{
		ExternalTxnID: req.ExternalTxnID,
		UserID:        req.UserID,
		Direction:     direction,
		Pool:          pool,
		Amount:        req.Amount,
		Type:          txnType,
		Description:   description,
		Reference:     ref,
	})
	if err != nil {
		s.writeMutationError(w, req, err)
		return
	}
	if result.Duplicate {
		s.metrics.ObserveIdempotentReplay()
	} else {
		s.metrics.ObserveLedgerMutation(txnType)
	}
	writeJSON(w, http.StatusOK, callbackResponse{
		TransactionID: result.Transaction.ID,
		Balance:       result.Balance,
		Duplicate:     result.Duplicate,
	})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	defer func() { s.metrics.ObserveCallbackDuration(time.Since(started).Seconds()) }()

	var req callbackRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(req.ExternalTxnID) == "" {
		writeError(w, http.StatusBadRequest, "externalTxnId required")
		return
	}
	result, err := s.ledger.RollbackExternal(req.ExternalTxnID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			// The original never arrived. Acknowledge so the provider
			// stops retrying; there is nothing to undo.
			writeJSON(w, http.StatusOK, callbackResponse{Duplicate: true})
		case errors.Is(err, ledger.ErrAlreadyRolledBack):
			writeJSON(w, http.StatusOK, callbackResponse{Duplicate: true})
		case errors.Is(err, ledger.ErrInsufficientBalance):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("rollback failed", "externalTxnId", req.ExternalTxnID, "err", err)
			writeError(w, http.StatusInternalServerError, "rollback failed")
		}
		return
	}
	s.metrics.ObserveLedgerMutation(ledger.TxnRollback)
	writeJSON(w, http.StatusOK, callbackResponse{
		TransactionID: result.Transaction.ID,
		Balance:       result.Balance,
	})
}

func (s *Server) writeMutationError(w http.ResponseWriter, req callbackRequest, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrIntegrityViolation):
		s.logger.Error("integrity violation on callback",
			"externalTxnId", req.ExternalTxnID, "user", req.UserID)
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("callback failed",
			"externalTxnId", req.ExternalTxnID, "user", req.UserID, "err", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

const maxBodyBytes = 64 * 1024

func decodeCallback(w http.ResponseWriter, r *http.Request) (callbackRequest, bool) {
	var req callbackRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return req, false
	}
	if strings.TrimSpace(req.ExternalTxnID) == "" {
		writeError(w, http.StatusBadRequest, "externalTxnId required")
		return req, false
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return req, false
	}
	return req, true
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
