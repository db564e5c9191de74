package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/event"
)

const namespace = "quizshare"

type Metrics struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	answersSubmitted  prometheus.Counter
	scores            prometheus.Histogram
}

// NewMetrics registers the session counters on reg and keeps them current from
// the events published on eb.
func NewMetrics(reg prometheus.Registerer, eb *event.Bus) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Number of quiz attempts started.",
		}),
		sessionsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Number of quiz attempts completed, by how they ended.",
		}, []string{"reason"}),
		answersSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Number of answers recorded, overwrites included.",
		}),
		scores: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_score",
			Help:      "Percentage scores of completed attempts.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}

	eb.Subscribe(domain.EventNameSessionStarted, func(context.Context, event.Event) error {
		m.sessionsStarted.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameAnswerSubmitted, func(context.Context, event.Event) error {
		m.answersSubmitted.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameSessionCompleted, func(_ context.Context, e event.Event) error {
		m.observeCompleted(e.(domain.EventSessionCompleted))
		return nil
	})

	return m
}

func (m *Metrics) observeCompleted(e domain.EventSessionCompleted) {
	reason := "submitted"
	if e.TimedOut {
		reason = "timed_out"
	}
	m.sessionsCompleted.WithLabelValues(reason).Inc()

	if e.Session.Score != nil {
		m.scores.Observe(e.Session.Score.InexactFloat64())
	}
}
