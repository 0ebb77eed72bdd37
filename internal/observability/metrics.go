package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce           sync.Once
	taskRequestsTotal      *prometheus.CounterVec
	taskRequestSeconds     *prometheus.HistogramVec
	taskSubmissionsTotal   *prometheus.CounterVec
	taskPointsAwardedTotal prometheus.Counter
	taskEventsFailedTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the tasks API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		taskRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_requests_total",
			Help: "Total number of task API invocations by operation and status code.",
		}, []string{"operation", "status"})

		taskRequestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tasks_request_duration_seconds",
			Help:    "Latency distribution for task API invocations.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"operation"})

		taskSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_submissions_total",
			Help: "Graded answer submissions by result.",
		}, []string{"result"})

		taskPointsAwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasks_points_awarded_total",
			Help: "Points credited to students for first correct answers.",
		})

		taskEventsFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_events_failed_total",
			Help: "Task events that could not be delivered, by transport.",
		}, []string{"transport"})

		prometheus.MustRegister(taskRequestsTotal, taskRequestSeconds, taskSubmissionsTotal, taskPointsAwardedTotal, taskEventsFailedTotal)
	})
}

// TaskRequests exposes the invocation counter.
func TaskRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return taskRequestsTotal
}

// TaskRequestDuration exposes the invocation latency histogram.
func TaskRequestDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return taskRequestSeconds
}

// TaskSubmissions exposes the graded submission counter.
func TaskSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return taskSubmissionsTotal
}

// PointsAwarded exposes the awarded points counter.
func PointsAwarded() prometheus.Counter {
	RegisterMetrics()
	return taskPointsAwardedTotal
}

// EventsFailed exposes the undelivered event counter.
func EventsFailed() *prometheus.CounterVec {
	RegisterMetrics()
	return taskEventsFailedTotal
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
