package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

// metrics are registered per server so several servers can coexist in one
// process.
type metrics struct {
	reg        *prometheus.Registry
	dispatched *prometheus.CounterVec
	changes    *prometheus.GaugeVec
	files      *prometheus.GaugeVec
	percent    prometheus.Gauge
}

func newMetrics(st *session.Store) *metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &metrics{
		reg: reg,
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crdash",
			Name:      "actions_dispatched_total",
			Help:      "Actions applied to the review session, by type.",
		}, []string{"type"}),
		changes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "crdash",
			Name:      "review_changes",
			Help:      "Suggested changes by review decision.",
		}, []string{"state"}),
		files: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "crdash",
			Name:      "uploaded_files",
			Help:      "Registered files by kind.",
		}, []string{"kind"}),
		percent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "crdash",
			Name:      "review_progress_percent",
			Help:      "Share of suggested changes with a decision.",
		}),
	}
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "crdash",
		Name:      "stale_results_discarded_total",
		Help:      "Asynchronous results dropped because the session was reset.",
	}, func() float64 { return float64(st.Discarded()) })

	m.record(st.Snapshot())
	return m
}

// observe is subscribed to the store.
func (m *metrics) observe(ev session.Event) {
	m.dispatched.WithLabelValues(ev.Action.Type()).Inc()
	m.record(ev.State)
}

func (m *metrics) record(st session.State) {
	p := st.ReviewProgress
	m.changes.WithLabelValues("total").Set(float64(p.TotalChanges))
	m.changes.WithLabelValues(model.DecisionAccepted.String()).Set(float64(p.AcceptedChanges))
	m.changes.WithLabelValues(model.DecisionRejected.String()).Set(float64(p.RejectedChanges))
	m.changes.WithLabelValues(model.DecisionPending.String()).Set(float64(p.PendingChanges))
	m.percent.Set(float64(p.Percent()))
	m.files.WithLabelValues(string(model.KindCode)).Set(float64(len(st.UploadedFiles.CodeFiles)))
	m.files.WithLabelValues(string(model.KindSRS)).Set(float64(len(st.UploadedFiles.SRSFiles)))
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
