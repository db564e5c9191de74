package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizshare/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	SessionCompleted struct {
		SessionID string `json:"session_id"`
		QuizID    string `json:"quiz_id"`
		QuizTitle string `json:"quiz_title"`
		UserID    string `json:"user_id,omitempty"`
		Score     string `json:"score"`
		TimedOut  bool   `json:"timed_out"`
	}
)

// PublishLeaderboardUpdated notifies every ranked user of the quiz.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, entry.UserID, e.Name(), data)
		})
	}

	return eg.Wait()
}

// PublishSessionCompleted notifies the quiz creator and, for authenticated
// attempts, the participant.
func (a *API) PublishSessionCompleted(ctx context.Context, e domain.EventSessionCompleted) error {
	ss := e.Session

	data := SessionCompleted{
		SessionID: ss.SessionID,
		QuizID:    ss.QuizID,
		QuizTitle: e.QuizTitle,
		UserID:    ss.UserID,
		TimedOut:  e.TimedOut,
	}
	if ss.Score != nil {
		data.Score = ss.Score.String()
	}

	recipients := []string{e.CreatorID}
	if ss.UserID != "" && ss.UserID != e.CreatorID {
		recipients = append(recipients, ss.UserID)
	}

	var eg errgroup.Group
	for _, u := range recipients {
		eg.Go(func() error {
			return a.publishNotification(ctx, u, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:user:%s", a.prefix, user), b).Err()
}
