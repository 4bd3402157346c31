// Package metrics exposes the shop's prometheus collectors and the fiber middleware that feeds them.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricRequestsTotal          = "http_requests_total"
	MetricRequestDurationSeconds = "http_request_duration_seconds"
	MetricInvoicesCreatedTotal   = "pos_invoices_created_total"
	MetricRefundsTotal           = "pos_refunds_total"
	MetricPDFRenderSeconds       = "pos_pdf_render_seconds"
)

// Registry holds every collector of the process. A private registry keeps tests isolated from
// the global default one.
var Registry = prometheus.NewRegistry()

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricRequestsTotal,
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricRequestDurationSeconds,
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	invoicesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricInvoicesCreatedTotal,
		Help: "Invoices booked, by invoice type.",
	}, []string{"type"})

	refundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricRefundsTotal,
		Help: "Credit notes issued.",
	})

	pdfRender = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricPDFRenderSeconds,
		Help:    "Time spent rendering invoice PDFs.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestsTotal, requestDuration, invoicesCreated, refundsTotal, pdfRender,
	)
}

const localsOnSuccess = "metrics.onSuccess"

// OnSuccess queues fn to run once the request has finished with a non-error status, which is
// after any request transaction has committed. Nothing queued runs for a failed request.
func OnSuccess(c *fiber.Ctx, fn func()) {
	queued, _ := c.Locals(localsOnSuccess).([]func())
	c.Locals(localsOnSuccess, append(queued, fn))
}

// Middleware records request count and latency per matched route and runs the OnSuccess queue.
// Unmatched paths are folded into one label value to keep cardinality bounded.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		method := c.Method()
		requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		if status < fiber.StatusBadRequest {
			queued, _ := c.Locals(localsOnSuccess).([]func())
			for _, fn := range queued {
				fn()
			}
		}
		return err
	}
}

// Handler serves the registry in the prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// InvoiceCreated counts one booked invoice of the given type (sale, exchange).
func InvoiceCreated(invoiceType string) {
	invoicesCreated.WithLabelValues(invoiceType).Inc()
}

// RefundIssued counts one credit note.
func RefundIssued() {
	refundsTotal.Inc()
}

// ObservePDFRender records how long one PDF took to render.
func ObservePDFRender(d time.Duration) {
	pdfRender.Observe(d.Seconds())
}
