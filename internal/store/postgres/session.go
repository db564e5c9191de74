package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/store"
)

const sessionColumns = `s.session_id, s.quiz_id, s.user_id, s.start_time, s.complete_time, s.score`

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		ss     domain.Session
		userID *string
		score  decimal.NullDecimal
	)

	if err := row.Scan(&ss.SessionID, &ss.QuizID, &userID, &ss.StartTime, &ss.CompleteTime, &score); err != nil {
		return domain.Session{}, err
	}

	ss.UserID = deref(userID)
	if score.Valid {
		ss.Score = &score.Decimal
	}

	return ss, nil
}

func (t *pgTx) InsertSession(ctx context.Context, ss domain.Session) error {
	const stmt = `INSERT INTO sessions (session_id, quiz_id, user_id, start_time) VALUES ($1, $2, $3, $4);`

	_, err := t.tx.Exec(ctx, stmt, ss.SessionID, ss.QuizID, nullable(ss.UserID), ss.StartTime)
	return mapErr("insert session", err)
}

func (t *pgTx) GetSession(ctx context.Context, sessionID string, forUpdate bool) (domain.Session, error) {
	stmt := `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.session_id = $1`
	if forUpdate {
		stmt += ` FOR UPDATE`
	}

	ss, err := scanSession(t.tx.QueryRow(ctx, stmt, sessionID))
	return ss, mapErr("get session", err)
}

func (t *pgTx) ListSessions(ctx context.Context, f store.SessionFilter) ([]domain.Session, error) {
	const stmt = `
SELECT ` + sessionColumns + `
FROM sessions s
JOIN quizzes q ON q.quiz_id = s.quiz_id
WHERE (($1 = '' AND $2 = '') OR ($1 <> '' AND s.user_id = $1) OR ($2 <> '' AND q.creator_id = $2))
	AND ($3 = '' OR s.quiz_id = $3)
	AND (NOT $4 OR s.complete_time IS NULL)
ORDER BY s.start_time DESC, s.session_id DESC;`

	rows, err := t.tx.Query(ctx, stmt, f.UserID, f.QuizCreatorID, f.QuizID, f.OpenOnly)
	if err != nil {
		return nil, mapErr("list sessions", err)
	}

	ss, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Session, error) {
		return scanSession(r)
	})
	return ss, mapErr("list sessions", err)
}

func (t *pgTx) CompleteSession(ctx context.Context, sessionID string, at time.Time, score decimal.Decimal) (bool, error) {
	const (
		completeStmt = `UPDATE sessions SET complete_time = $2, score = $3 WHERE session_id = $1 AND complete_time IS NULL;`
		existsStmt   = `SELECT EXISTS (SELECT 1 FROM sessions WHERE session_id = $1);`
	)

	tag, err := t.tx.Exec(ctx, completeStmt, sessionID, at, score)
	if err != nil {
		return false, mapErr("complete session", err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, existsStmt, sessionID).Scan(&exists); err != nil {
		return false, mapErr("complete session", err)
	}

	if !exists {
		return false, fmt.Errorf("complete session: %w", store.ErrNotFound)
	}

	return false, nil
}

const answerColumns = `answer_id, session_id, question_id, choice_id, answer_time`

func scanAnswer(row pgx.Row) (domain.Answer, error) {
	var a domain.Answer
	err := row.Scan(&a.AnswerID, &a.SessionID, &a.QuestionID, &a.ChoiceID, &a.AnswerTime)
	return a, err
}

func (t *pgTx) UpsertAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	const stmt = `
INSERT INTO answers (` + answerColumns + `)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, question_id) DO UPDATE
SET choice_id = EXCLUDED.choice_id, answer_time = EXCLUDED.answer_time
RETURNING ` + answerColumns + `;`

	res, err := scanAnswer(t.tx.QueryRow(ctx, stmt, a.AnswerID, a.SessionID, a.QuestionID, a.ChoiceID, a.AnswerTime))
	return res, mapErr("upsert answer", err)
}

func (t *pgTx) ListAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	const stmt = `
SELECT ` + answerColumns + `
FROM answers
WHERE session_id = $1
ORDER BY answer_time, answer_id;`

	rows, err := t.tx.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, mapErr("list answers", err)
	}

	as, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Answer, error) {
		return scanAnswer(r)
	})
	return as, mapErr("list answers", err)
}
