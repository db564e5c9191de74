package domain

const (
	EventNameSessionStarted     = "session.started"
	EventNameAnswerSubmitted    = "answer.submitted"
	EventNameSessionCompleted   = "session.completed"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventSessionStarted struct {
	Session Session
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

type EventAnswerSubmitted struct {
	Answer Answer
}

func (EventAnswerSubmitted) Name() string { return EventNameAnswerSubmitted }

// EventSessionCompleted is published once per session, whether completion was
// requested or forced by a timeout.
type EventSessionCompleted struct {
	Session   Session
	QuizTitle string
	CreatorID string
	TimedOut  bool
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

// Leaderboard ranks users by their best completed score on a quiz, highest first.
type Leaderboard struct {
	QuizID  string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID   string
	Username string
	Score    float64
}
