package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service. A single instance
// is created at startup and threaded through the app wiring.
type Metrics struct {
	Logins             prometheus.Counter
	Registrations      prometheus.Counter
	Refreshes          prometheus.Counter
	RefreshReuseDenied prometheus.Counter
	Logouts            prometheus.Counter

	ExpiryWarningsSent    prometheus.Counter
	ExpiryWarningsSkipped prometheus.Counter

	ConnectedSockets prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Logins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pocketlist",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Successful password logins.",
		}),
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pocketlist",
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "New accounts created.",
		}),
		Refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pocketlist",
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Successful refresh token rotations.",
		}),
		RefreshReuseDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pocketlist",
			Subsystem: "auth",
			Name:      "refresh_reuse_denied_total",
			Help:      "Refresh attempts rejected because the token was already consumed or unknown.",
		}),
		Logouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pocketlist",
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Logout requests processed.",
		}),
		ExpiryWarningsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pocketlist",
			Subsystem: "notifier",
			Name:      "expiry_warnings_sent_total",
			Help:      "Token expiry warnings pushed to clients.",
		}),
		ExpiryWarningsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pocketlist",
			Subsystem: "notifier",
			Name:      "expiry_warnings_skipped_total",
			Help:      "Warnings not scheduled because the token lifetime was shorter than the lead time.",
		}),
		ConnectedSockets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pocketlist",
			Subsystem: "ws",
			Name:      "connected_sockets",
			Help:      "Currently connected WebSocket clients.",
		}),
	}
}
