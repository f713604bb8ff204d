package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	walletOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Wallet mutations by transaction type and result.",
		},
		[]string{"type", "result"},
	)

	ledgerLinesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_lines_created_total",
		Help: "Ledger lines appended to the journal.",
	})

	invariantHolds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "books_invariant_holds",
		Help: "1 when wallet totals equal the liability balance, 0 otherwise.",
	})

	invariantWalletTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "books_wallet_total_paise",
		Help: "Sum of available+locked across all wallets, in paise.",
	})

	invariantLedgerTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "books_liability_balance_paise",
		Help: "USER_WALLET_LIABILITY balance, in paise.",
	})

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service is accepting traffic.",
	})
)

// Init registers every collector with the default registry. Call once
// from main before serving.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		walletOpsTotal, ledgerLinesTotal,
		invariantHolds, invariantWalletTotal, invariantLedgerTotal,
		ready,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge; the /readyz handler reports the
// same value.
func SetReady(up bool) {
	if up {
		ready.Set(1)
	} else {
		ready.Set(0)
	}
}

// ObserveWalletOp counts one wallet mutation outcome.
func ObserveWalletOp(txType, result string) {
	walletOpsTotal.WithLabelValues(txType, result).Inc()
}

// AddLedgerLines counts journal lines written by a committed entry.
func AddLedgerLines(n int) {
	ledgerLinesTotal.Add(float64(n))
}

// SetInvariant publishes the latest invariant check.
func SetInvariant(holds bool, walletTotal, ledgerTotal int64) {
	if holds {
		invariantHolds.Set(1)
	} else {
		invariantHolds.Set(0)
	}
	invariantWalletTotal.Set(float64(walletTotal))
	invariantLedgerTotal.Set(float64(ledgerTotal))
}

// CanonicalPath collapses per-user and per-account path segments so the
// path label stays low-cardinality.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "wallets" {
		switch len(parts) {
		case 3:
			return "/v1/wallets/:user"
		case 4:
			switch parts[3] {
			case "deposit", "withdraw", "lock", "release":
				return "/v1/wallets/:user/" + parts[3]
			}
		}
	}
	if len(parts) == 5 && parts[0] == "v1" && parts[1] == "ledger" && parts[2] == "accounts" && parts[4] == "balance" {
		return "/v1/ledger/accounts/:code/balance"
	}
	return "/" + strings.Join(parts, "/")
}

// Instrument wraps a handler with RPS, latency and in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter records the response code for the metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
