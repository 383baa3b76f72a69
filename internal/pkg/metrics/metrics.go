package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ClaimOutcomes      *prometheus.CounterVec
	ClaimDuration      prometheus.Histogram
	SignIns            *prometheus.CounterVec
	DraftSaves         prometheus.Counter
	SessionStoreErrors *prometheus.CounterVec
}

// New registers the application collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClaimOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreg_role_claims_total",
			Help: "Role claims by role and outcome",
		}, []string{"role", "outcome"}),
		ClaimDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusreg_role_claim_duration_seconds",
			Help:    "Time spent resolving a role claim",
			Buckets: prometheus.DefBuckets,
		}),
		SignIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreg_signins_total",
			Help: "Completed IdP callbacks by result",
		}, []string{"result"}),
		DraftSaves: f.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_registration_draft_saves_total",
			Help: "Registration drafts written",
		}),
		SessionStoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreg_session_store_errors_total",
			Help: "Session store failures by operation",
		}, []string{"op"}),
	}
}

func (m *Metrics) ObserveClaim(role, outcome string, d time.Duration) {
	if role == "" {
		role = "unknown"
	}
	m.ClaimOutcomes.WithLabelValues(role, outcome).Inc()
	m.ClaimDuration.Observe(d.Seconds())
}

func (m *Metrics) IncrementSignIns(result string) {
	m.SignIns.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementDraftSaves() {
	m.DraftSaves.Inc()
}

func (m *Metrics) IncrementSessionStoreErrors(op string) {
	m.SessionStoreErrors.WithLabelValues(op).Inc()
}
