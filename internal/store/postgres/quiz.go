package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/store"
)

const quizColumns = `q.quiz_id, q.title, q.description, q.creator_id, q.duration_minutes, q.is_public,
q.allow_anonymous_attempts, q.share_code, q.create_time, q.update_time`

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var q domain.Quiz
	err := row.Scan(&q.QuizID, &q.Title, &q.Description, &q.CreatorID, &q.DurationMinutes, &q.IsPublic,
		&q.AllowAnonymousAttempts, &q.ShareCode, &q.CreateTime, &q.UpdateTime)
	return q, err
}

func (t *pgTx) InsertQuiz(ctx context.Context, q domain.Quiz) error {
	const stmt = `
INSERT INTO quizzes (quiz_id, title, description, creator_id, duration_minutes, is_public,
	allow_anonymous_attempts, share_code, create_time, update_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err := t.tx.Exec(ctx, stmt, q.QuizID, q.Title, q.Description, q.CreatorID, q.DurationMinutes, q.IsPublic,
		q.AllowAnonymousAttempts, q.ShareCode, q.CreateTime, q.UpdateTime)
	return mapErr("insert quiz", err)
}

func (t *pgTx) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	const stmt = `SELECT ` + quizColumns + ` FROM quizzes q WHERE q.quiz_id = $1;`

	q, err := scanQuiz(t.tx.QueryRow(ctx, stmt, quizID))
	return q, mapErr("get quiz", err)
}

func (t *pgTx) GetQuizByShareCode(ctx context.Context, code string) (domain.Quiz, error) {
	const stmt = `SELECT ` + quizColumns + ` FROM quizzes q WHERE q.share_code = $1;`

	q, err := scanQuiz(t.tx.QueryRow(ctx, stmt, code))
	return q, mapErr("get quiz by share code", err)
}

func (t *pgTx) UpdateQuiz(ctx context.Context, q domain.Quiz) error {
	const stmt = `
UPDATE quizzes
SET title = $2, description = $3, duration_minutes = $4, is_public = $5,
	allow_anonymous_attempts = $6, update_time = $7
WHERE quiz_id = $1;`

	return t.exec(ctx, "update quiz", stmt, q.QuizID, q.Title, q.Description, q.DurationMinutes, q.IsPublic,
		q.AllowAnonymousAttempts, q.UpdateTime)
}

func (t *pgTx) DeleteQuiz(ctx context.Context, quizID string) error {
	const stmt = `DELETE FROM quizzes WHERE quiz_id = $1;`

	return t.exec(ctx, "delete quiz", stmt, quizID)
}

func (t *pgTx) ListQuizzes(ctx context.Context, f store.QuizFilter) ([]domain.Quiz, error) {
	const stmt = `
SELECT ` + quizColumns + `
FROM quizzes q
WHERE ($1 AND q.is_public)
	OR ($2 <> '' AND q.creator_id = $2)
	OR ($3 <> '' AND EXISTS (SELECT 1 FROM shares s WHERE s.quiz_id = q.quiz_id AND s.grantee_id = $3))
ORDER BY q.create_time DESC, q.quiz_id DESC;`

	rows, err := t.tx.Query(ctx, stmt, f.Public, f.CreatorID, f.SharedWith)
	if err != nil {
		return nil, mapErr("list quizzes", err)
	}

	qs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Quiz, error) {
		return scanQuiz(r)
	})
	return qs, mapErr("list quizzes", err)
}

const questionColumns = `question_id, quiz_id, text, position, create_time`

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	err := row.Scan(&q.QuestionID, &q.QuizID, &q.Text, &q.Order, &q.CreateTime)
	return q, err
}

func (t *pgTx) InsertQuestion(ctx context.Context, q domain.Question) error {
	const stmt = `INSERT INTO questions (` + questionColumns + `) VALUES ($1, $2, $3, $4, $5);`

	_, err := t.tx.Exec(ctx, stmt, q.QuestionID, q.QuizID, q.Text, q.Order, q.CreateTime)
	return mapErr("insert question", err)
}

func (t *pgTx) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	const stmt = `SELECT ` + questionColumns + ` FROM questions WHERE question_id = $1;`

	q, err := scanQuestion(t.tx.QueryRow(ctx, stmt, questionID))
	return q, mapErr("get question", err)
}

func (t *pgTx) UpdateQuestion(ctx context.Context, q domain.Question) error {
	const stmt = `UPDATE questions SET text = $2, position = $3 WHERE question_id = $1;`

	return t.exec(ctx, "update question", stmt, q.QuestionID, q.Text, q.Order)
}

func (t *pgTx) DeleteQuestion(ctx context.Context, questionID string) error {
	const stmt = `DELETE FROM questions WHERE question_id = $1;`

	return t.exec(ctx, "delete question", stmt, questionID)
}

func (t *pgTx) ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	const (
		questionsStmt = `
SELECT ` + questionColumns + `
FROM questions
WHERE quiz_id = $1
ORDER BY position, create_time, question_id;`

		choicesStmt = `
SELECT c.choice_id, c.question_id, c.text, c.is_correct, c.position, c.create_time
FROM choices c
JOIN questions q ON q.question_id = c.question_id
WHERE q.quiz_id = $1;`
	)

	rows, err := t.tx.Query(ctx, questionsStmt, quizID)
	if err != nil {
		return nil, mapErr("list questions", err)
	}

	qs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		return scanQuestion(r)
	})
	if err != nil {
		return nil, mapErr("list questions", err)
	}

	rows, err = t.tx.Query(ctx, choicesStmt, quizID)
	if err != nil {
		return nil, mapErr("list choices", err)
	}

	cs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Choice, error) {
		return scanChoice(r)
	})
	if err != nil {
		return nil, mapErr("list choices", err)
	}

	byQuestion := make(map[string][]domain.Choice, len(qs))
	for _, c := range cs {
		byQuestion[c.QuestionID] = append(byQuestion[c.QuestionID], c)
	}
	for i := range qs {
		qs[i].Choices = byQuestion[qs[i].QuestionID]
		domain.SortChoices(qs[i].Choices)
	}

	return qs, nil
}

func (t *pgTx) CountQuestions(ctx context.Context, quizID string) (int, error) {
	const stmt = `SELECT COUNT(*) FROM questions WHERE quiz_id = $1;`

	var n int
	err := t.tx.QueryRow(ctx, stmt, quizID).Scan(&n)
	return n, mapErr("count questions", err)
}

const choiceColumns = `choice_id, question_id, text, is_correct, position, create_time`

func scanChoice(row pgx.Row) (domain.Choice, error) {
	var c domain.Choice
	err := row.Scan(&c.ChoiceID, &c.QuestionID, &c.Text, &c.IsCorrect, &c.Order, &c.CreateTime)
	return c, err
}

func (t *pgTx) InsertChoice(ctx context.Context, c domain.Choice) error {
	const stmt = `INSERT INTO choices (` + choiceColumns + `) VALUES ($1, $2, $3, $4, $5, $6);`

	_, err := t.tx.Exec(ctx, stmt, c.ChoiceID, c.QuestionID, c.Text, c.IsCorrect, c.Order, c.CreateTime)
	return mapErr("insert choice", err)
}

func (t *pgTx) GetChoice(ctx context.Context, choiceID string) (domain.Choice, error) {
	const stmt = `SELECT ` + choiceColumns + ` FROM choices WHERE choice_id = $1;`

	c, err := scanChoice(t.tx.QueryRow(ctx, stmt, choiceID))
	return c, mapErr("get choice", err)
}

func (t *pgTx) UpdateChoice(ctx context.Context, c domain.Choice) error {
	const stmt = `UPDATE choices SET text = $2, is_correct = $3, position = $4 WHERE choice_id = $1;`

	return t.exec(ctx, "update choice", stmt, c.ChoiceID, c.Text, c.IsCorrect, c.Order)
}

func (t *pgTx) DeleteChoice(ctx context.Context, choiceID string) error {
	const stmt = `DELETE FROM choices WHERE choice_id = $1;`

	return t.exec(ctx, "delete choice", stmt, choiceID)
}

func (t *pgTx) ListChoices(ctx context.Context, questionID string) ([]domain.Choice, error) {
	const stmt = `
SELECT ` + choiceColumns + `
FROM choices
WHERE question_id = $1
ORDER BY position, create_time, choice_id;`

	rows, err := t.tx.Query(ctx, stmt, questionID)
	if err != nil {
		return nil, mapErr("list choices", err)
	}

	cs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Choice, error) {
		return scanChoice(r)
	})
	return cs, mapErr("list choices", err)
}
