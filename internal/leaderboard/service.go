// Package leaderboard ranks users by their best completed score on each quiz.
package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/event"
	"github.com/victornm/quizshare/internal/store"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	// Store resolves usernames for the entries. Entries keep an empty username
	// when it is nil.
	Store  store.Store
	Prefix string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	store  store.Store
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		store:  c.Store,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventSessionCompleted))
	})

	return s
}

type GetLeaderboardRequest struct {
	QuizID string
}

// GetLeaderboard returns every ranked user of the quiz, best score first. A quiz
// nobody has completed yet has an empty leaderboard.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.QuizID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			UserID: z.Member.(string),
			Score:  z.Score,
		})
	}

	if err := s.resolveUsernames(ctx, entries); err != nil {
		return nil, err
	}

	return &domain.Leaderboard{
		QuizID:  req.QuizID,
		Entries: entries,
	}, nil
}

func (s *Service) resolveUsernames(ctx context.Context, entries []domain.LeaderboardEntry) error {
	if s.store == nil || len(entries) == 0 {
		return nil
	}

	return s.store.View(ctx, func(tx store.Tx) error {
		for i := range entries {
			u, err := tx.GetUser(ctx, entries[i].UserID)
			if stderrors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("resolve username: %w", err)
			}
			entries[i].Username = u.Username
		}
		return nil
	})
}

// UpdateLeaderboard records the session's score unless the user already has a
// better one on the quiz. Anonymous sessions are not ranked.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventSessionCompleted) error {
	ss := e.Session
	if ss.UserID == "" || ss.Score == nil {
		return nil
	}

	if err := s.redis.ZAddGT(ctx, s.getLeaderboardKey(ss.QuizID), redis.Z{
		Score:  ss.Score.InexactFloat64(),
		Member: ss.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, ss)
}

// schedulePublishLeaderboard publishes leaderboard.updated at most once per quiz
// and publish interval on the leading edge, across all instances sharing the
// Redis. Completions landing inside the interval elect one trailing publish that
// fires when the interval ends, so the last scores of a burst still go out.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, ss domain.Session) error {
	at := ss.StartTime
	if ss.CompleteTime != nil {
		at = *ss.CompleteTime
	}

	timeKey := s.getLeaderboardTimeKey(ss.QuizID)
	ok, err := s.redis.SetNX(ctx, timeKey, at.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if ok {
		return s.publishLeaderboard(ctx, ss.QuizID)
	}

	pendingKey := s.getLeaderboardPendingKey(ss.QuizID)
	ok, err = s.redis.SetNX(ctx, pendingKey, at.UnixMilli(), 2*publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx pending: %w", err)
	}

	if !ok {
		return nil
	}

	wait, err := s.redis.PTTL(ctx, timeKey).Result()
	if err != nil {
		return fmt.Errorf("pttl: %w", err)
	}

	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := s.redis.Del(ctx, pendingKey).Err(); err != nil {
		return fmt.Errorf("del pending: %w", err)
	}

	return s.publishLeaderboard(ctx, ss.QuizID)
}

func (s *Service) publishLeaderboard(ctx context.Context, quizID string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		QuizID: quizID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: quiz=%s: %w", quizID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s:leaderboard", s.prefix, quizID)
}

func (s *Service) getLeaderboardTimeKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s:time", s.prefix, quizID)
}

func (s *Service) getLeaderboardPendingKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s:pending", s.prefix, quizID)
}
