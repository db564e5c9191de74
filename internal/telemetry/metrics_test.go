package telemetry_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/event"
	"github.com/victornm/quizshare/internal/telemetry"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	eb := event.NewBus()
	telemetry.NewMetrics(reg, eb)

	score := decimal.NewFromInt(50)

	eb.Publish(ctx, domain.EventSessionStarted{Session: domain.Session{SessionID: "s1"}})
	eb.Publish(ctx, domain.EventSessionStarted{Session: domain.Session{SessionID: "s2"}})
	eb.Publish(ctx, domain.EventAnswerSubmitted{Answer: domain.Answer{SessionID: "s1"}})
	eb.Publish(ctx, domain.EventSessionCompleted{Session: domain.Session{SessionID: "s1", Score: &score}})
	eb.Publish(ctx, domain.EventSessionCompleted{Session: domain.Session{SessionID: "s2", Score: &score}, TimedOut: true})
	eb.Stop()

	families, err := reg.Gather()
	assert.NoError(t, err)

	values := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			name := f.GetName()
			for _, l := range m.GetLabel() {
				name += ":" + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				values[name] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				values[name] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, map[string]float64{
		"quizshare_sessions_started_total":             2,
		"quizshare_answers_submitted_total":            1,
		"quizshare_sessions_completed_total:submitted": 1,
		"quizshare_sessions_completed_total:timed_out": 1,
		"quizshare_session_score":                      2,
	}, values)
}
