package obs

import (
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	appInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "taskdesk",
			Subsystem: "app",
			Name:      "info",
			Help:      "Static app info for deployment verification.",
		},
		[]string{"service", "version"},
	)

	apiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskdesk",
			Subsystem: "api",
			Name:      "calls_total",
			Help:      "Backend calls by endpoint and outcome.",
		},
		[]string{"method", "endpoint", "outcome"},
	)
	apiCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskdesk",
			Subsystem: "api",
			Name:      "call_duration_seconds",
			Help:      "Backend call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	pollProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskdesk",
			Subsystem: "poll",
			Name:      "probes_total",
			Help:      "Status probes issued by pollers.",
		},
		[]string{"poller", "result"},
	)
	pollRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskdesk",
			Subsystem: "poll",
			Name:      "runs_total",
			Help:      "Finished poll runs by outcome.",
		},
		[]string{"poller", "outcome"},
	)
	pollRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskdesk",
			Subsystem: "poll",
			Name:      "run_duration_seconds",
			Help:      "Poll run duration in seconds.",
			Buckets:   []float64{1, 5, 10, 20, 40, 80, 160, 300, 600},
		},
		[]string{"poller"},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskdesk",
			Subsystem: "flow",
			Name:      "submissions_total",
			Help:      "User submissions by flow and result.",
		},
		[]string{"flow", "result"},
	)
)

func init() {
	prometheus.MustRegister(appInfo, apiCallsTotal, apiCallDuration, pollProbesTotal, pollRunsTotal, pollRunDuration, submissionsTotal)
}

func SetAppInfo(service string) {
	svc := strings.TrimSpace(service)
	if svc == "" {
		svc = "taskdesk"
	}
	ver := strings.TrimSpace(os.Getenv("APP_VERSION"))
	if ver == "" {
		ver = "dev"
	}
	appInfo.WithLabelValues(svc, ver).Set(1)
}

// RecordAPICall counts one gateway call. outcome is "ok", "business", "http" or "network".
func RecordAPICall(method, path, outcome string, start time.Time) {
	ep := NormalizeEndpoint(path)
	apiCallsTotal.WithLabelValues(method, ep, outcome).Inc()
	apiCallDuration.WithLabelValues(method, ep).Observe(time.Since(start).Seconds())
}

func RecordPollProbe(poller, result string) {
	pollProbesTotal.WithLabelValues(poller, result).Inc()
}

func RecordPollRun(poller, outcome string, start time.Time) {
	pollRunsTotal.WithLabelValues(poller, outcome).Inc()
	pollRunDuration.WithLabelValues(poller).Observe(time.Since(start).Seconds())
}

func RecordSubmission(flow string, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	submissionsTotal.WithLabelValues(flow, res).Inc()
}

// NormalizeEndpoint strips ids and query strings so labels stay low-cardinality.
func NormalizeEndpoint(path string) string {
	p := strings.TrimSpace(path)
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	for _, prefix := range []string{
		"/payment/status/",
		"/payment/cancel/",
		"/order/cancel/",
	} {
		if strings.HasPrefix(p, prefix) && len(p) > len(prefix) {
			return prefix + ":id"
		}
	}
	// /order/{orderNo}, but not /order/create
	if strings.HasPrefix(p, "/order/") {
		rest := strings.TrimPrefix(p, "/order/")
		if rest != "" && rest != "create" && !strings.Contains(rest, "/") {
			return "/order/:id"
		}
	}
	return p
}
