package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	// Telegram Bot API calls by method and outcome
	TelegramRequests *prometheus.CounterVec
	// Matched commands by prefix
	CommandsDispatched *prometheus.CounterVec
	// Inbound messages that matched no command
	UnmatchedMessages prometheus.Counter

	// LinkedIn OAuth calls by stage (token, profile) and outcome
	OAuthRequests *prometheus.CounterVec
	// Linked account lifecycle events (linked, unlinked)
	LinkedAccounts *prometheus.CounterVec

	registry *prometheus.Registry
}

// New registers all collectors on a fresh registry. The Record methods are
// safe to call on a nil *Metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		TelegramRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telegram_api_requests_total",
				Help: "Total number of Telegram Bot API requests",
			},
			[]string{"method", "outcome"},
		),
		CommandsDispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telegram_commands_total",
				Help: "Total number of dispatched bot commands",
			},
			[]string{"command"},
		),
		UnmatchedMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "telegram_unmatched_messages_total",
			Help: "Total number of inbound messages that matched no command",
		}),
		OAuthRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkedin_oauth_requests_total",
				Help: "Total number of LinkedIn OAuth requests",
			},
			[]string{"stage", "outcome"},
		),
		LinkedAccounts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linked_accounts_events_total",
				Help: "Total number of account link and unlink events",
			},
			[]string{"event"},
		),
		registry: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordTelegramRequest(method string, err error) {
	if m == nil {
		return
	}
	m.TelegramRequests.WithLabelValues(method, outcome(err)).Inc()
}

func (m *Metrics) RecordCommand(prefix string) {
	if m == nil {
		return
	}
	m.CommandsDispatched.WithLabelValues(prefix).Inc()
}

func (m *Metrics) RecordUnmatched() {
	if m == nil {
		return
	}
	m.UnmatchedMessages.Inc()
}

func (m *Metrics) RecordOAuth(stage string, err error) {
	if m == nil {
		return
	}
	m.OAuthRequests.WithLabelValues(stage, outcome(err)).Inc()
}

func (m *Metrics) RecordAccountEvent(event string) {
	if m == nil {
		return
	}
	m.LinkedAccounts.WithLabelValues(event).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
