package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ParseRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plumage_parse_runs_total",
		Help: "Total archive ingestion runs",
	})
	ParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plumage_parse_errors_total",
		Help: "Total fatal ingestion errors",
	})
	ParseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plumage_parse_duration_seconds",
		Help:    "Ingestion run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CategoryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_category_errors_total",
		Help: "Category files that failed to parse",
	}, []string{"category"})
	Unresolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_unresolved_references_total",
		Help: "Shortlinks, media and handles left unresolved",
	}, []string{"kind"})
	LookupRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_lookup_retries_total",
		Help: "Total remote lookup retry attempts",
	}, []string{"endpoint"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(ParseRuns, ParseErrors, ParseDuration, CategoryErrors, Unresolved, LookupRetries, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveParseDuration records a run duration.
func ObserveParseDuration(start time.Time) {
	ParseDuration.Observe(time.Since(start).Seconds())
}

// IncCategoryError counts one category that failed to parse.
func IncCategoryError(category string) { CategoryErrors.WithLabelValues(category).Inc() }

// IncUnresolved counts one unresolved reference by kind.
func IncUnresolved(kind string) { Unresolved.WithLabelValues(kind).Inc() }

// IncLookupRetry increments the retry counter for a lookup endpoint.
func IncLookupRetry(endpoint string) { LookupRetries.WithLabelValues(endpoint).Inc() }

// IncCommandRun counts one CLI command invocation.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError counts one CLI command failure.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
