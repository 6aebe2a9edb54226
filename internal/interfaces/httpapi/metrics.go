package httpapi

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"arc72scan/internal/application"
	"arc72scan/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics observes the scanner. It keeps a snapshot for /state and exports
// the same figures to Prometheus.
type Metrics struct {
	mu            sync.RWMutex
	startTime     time.Time
	latestRound   uint64
	lastScanned   uint64
	lastTxns      int
	lastCands     int
	lastAccepted  int
	lastDuration  time.Duration
	roundsScanned uint64
	roundsFailed  uint64
	transfers     uint64
	rejected      uint64
	newContracts  uint64
	lastError     string

	registry         *prometheus.Registry
	latestRoundGauge prometheus.Gauge
	lastRoundGauge   prometheus.Gauge
	roundsTotal      *prometheus.CounterVec
	candidatesTotal  prometheus.Counter
	transfersTotal   *prometheus.CounterVec
	contractsTotal   prometheus.Counter
	roundDuration    prometheus.Histogram
}

func NewMetrics(network string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	labels := prometheus.Labels{"network": network}

	return &Metrics{
		startTime: time.Now(),
		registry:  registry,
		latestRoundGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "arc72scan_latest_round",
			Help:        "Last round reported by the node",
			ConstLabels: labels,
		}),
		lastRoundGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "arc72scan_last_scanned_round",
			Help:        "Last round written and confirmed",
			ConstLabels: labels,
		}),
		roundsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "arc72scan_rounds_total",
			Help:        "Rounds processed by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		candidatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "arc72scan_transfer_candidates_total",
			Help:        "Transfer candidates extracted from blocks",
			ConstLabels: labels,
		}),
		transfersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "arc72scan_transfers_total",
			Help:        "Transfer candidates by verification verdict",
			ConstLabels: labels,
		}, []string{"verdict"}),
		contractsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "arc72scan_new_contracts_total",
			Help:        "Application creations whose program matched the token standard",
			ConstLabels: labels,
		}),
		roundDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "arc72scan_round_duration_seconds",
			Help:        "Time to fetch, extract and verify a round",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) OnLatestRound(round uint64) {
	m.mu.Lock()
	m.latestRound = round
	m.mu.Unlock()
	m.latestRoundGauge.Set(float64(round))
}

func (m *Metrics) OnRoundScanned(result application.RoundResult) {
	m.mu.Lock()
	m.lastScanned = result.Round
	m.lastTxns = result.Transactions
	m.lastCands = len(result.Candidates)
	m.lastAccepted = len(result.Events)
	m.lastDuration = result.Duration
	m.roundsScanned++
	m.transfers += uint64(len(result.Events))
	m.rejected += uint64(result.Rejected())
	m.newContracts += uint64(len(result.NewContracts))
	m.mu.Unlock()

	m.lastRoundGauge.Set(float64(result.Round))
	m.roundsTotal.WithLabelValues("scanned").Inc()
	m.candidatesTotal.Add(float64(len(result.Candidates)))
	m.transfersTotal.WithLabelValues("accepted").Add(float64(len(result.Events)))
	m.transfersTotal.WithLabelValues("rejected").Add(float64(result.Rejected()))
	m.contractsTotal.Add(float64(len(result.NewContracts)))
	m.roundDuration.Observe(result.Duration.Seconds())
}

func (m *Metrics) OnRoundFailed(round uint64, err error) {
	m.mu.Lock()
	m.roundsFailed++
	if err != nil {
		m.lastError = err.Error()
	}
	m.mu.Unlock()

	outcome := "failed"
	switch {
	case errors.Is(err, domain.ErrNetwork):
		outcome = "network_error"
	case errors.Is(err, domain.ErrDecode):
		outcome = "decode_error"
	}
	m.roundsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

type Snapshot struct {
	StartTime     time.Time     `json:"start_time"`
	LatestRound   uint64        `json:"latest_round"`
	LastScanned   uint64        `json:"last_scanned_round"`
	LastTxns      int           `json:"last_round_transactions"`
	LastCands     int           `json:"last_round_candidates"`
	LastAccepted  int           `json:"last_round_accepted"`
	LastDuration  time.Duration `json:"last_round_duration_ns"`
	RoundsScanned uint64        `json:"rounds_scanned"`
	RoundsFailed  uint64        `json:"rounds_failed"`
	Transfers     uint64        `json:"transfers_accepted"`
	Rejected      uint64        `json:"transfers_rejected"`
	NewContracts  uint64        `json:"new_contracts"`
	LastError     string        `json:"last_error,omitempty"`
}

// Lag is how many rounds the scanner trails the node by.
func (s Snapshot) Lag() uint64 {
	if s.LastScanned == 0 || s.LatestRound < s.LastScanned {
		return 0
	}
	return s.LatestRound - s.LastScanned
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:     m.startTime,
		LatestRound:   m.latestRound,
		LastScanned:   m.lastScanned,
		LastTxns:      m.lastTxns,
		LastCands:     m.lastCands,
		LastAccepted:  m.lastAccepted,
		LastDuration:  m.lastDuration,
		RoundsScanned: m.roundsScanned,
		RoundsFailed:  m.roundsFailed,
		Transfers:     m.transfers,
		Rejected:      m.rejected,
		NewContracts:  m.newContracts,
		LastError:     m.lastError,
	}
}
