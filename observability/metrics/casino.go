package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CasinoMetrics struct {
	roundsStarted    prometheus.Counter
	roundsEnded      prometheus.Counter
	crashPoints      prometheus.Histogram
	betsPlaced       *prometheus.CounterVec
	cashouts         *prometheus.CounterVec
	ledgerMutations  *prometheus.CounterVec
	idempotentHits   prometheus.Counter
	callbackDuration prometheus.Histogram
}

var (
	casinoOnce     sync.Once
	casinoRegistry *CasinoMetrics
)

func Casino() *CasinoMetrics {
	casinoOnce.Do(func() {
		casinoRegistry = &CasinoMetrics{
			roundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "casino_rounds_started_total",
				Help: "Count of rounds that entered the running phase.",
			}),
			roundsEnded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "casino_rounds_ended_total",
				Help: "Count of rounds that reached their crash point.",
			}),
			crashPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "casino_crash_point",
				Help:    "Distribution of revealed crash multipliers.",
				Buckets: []float64{1, 1.2, 1.5, 2, 3, 5, 10, 25, 100, 1000, 10000},
			}),
			betsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "casino_bets_placed_total",
				Help: "Count of accepted bets by game.",
			}, []string{"game"}),
			cashouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "casino_cashouts_total",
				Help: "Count of settled cashouts by trigger.",
			}, []string{"trigger"}),
			ledgerMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "casino_ledger_mutations_total",
				Help: "Count of committed ledger mutations by type.",
			}, []string{"type"}),
			idempotentHits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "casino_idempotent_replays_total",
				Help: "Count of external deliveries answered from the journal.",
			}),
			callbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "casino_provider_callback_seconds",
				Help:    "Latency of provider callback handling.",
				Buckets: prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			casinoRegistry.roundsStarted,
			casinoRegistry.roundsEnded,
			casinoRegistry.crashPoints,
			casinoRegistry.betsPlaced,
			casinoRegistry.cashouts,
			casinoRegistry.ledgerMutations,
			casinoRegistry.idempotentHits,
			casinoRegistry.callbackDuration,
		)
	})
	return casinoRegistry
}

func (m *CasinoMetrics) ObserveRoundStarted() {
	if m == nil {
		return
	}
	m.roundsStarted.Inc()
}

func (m *CasinoMetrics) ObserveRoundEnded(crashPoint float64) {
	if m == nil {
		return
	}
	m.roundsEnded.Inc()
	m.crashPoints.Observe(crashPoint)
}

func (m *CasinoMetrics) ObserveBetPlaced(game string) {
	if m == nil {
		return
	}
	if game == "" {
		game = "unknown"
	}
	m.betsPlaced.WithLabelValues(game).Inc()
}

func (m *CasinoMetrics) ObserveCashout(trigger string) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "manual"
	}
	m.cashouts.WithLabelValues(trigger).Inc()
}

func (m *CasinoMetrics) ObserveLedgerMutation(txnType string) {
	if m == nil {
		return
	}
	if txnType == "" {
		txnType = "unknown"
	}
	m.ledgerMutations.WithLabelValues(txnType).Inc()
}

func (m *CasinoMetrics) ObserveIdempotentReplay() {
	if m == nil {
		return
	}
	m.idempotentHits.Inc()
}

func (m *CasinoMetrics) ObserveCallbackDuration(seconds float64) {
	if m == nil {
		return
	}
	m.callbackDuration.Observe(seconds)
}
