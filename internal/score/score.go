// Package score grades a session's answers against the quiz's current choices.
package score

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/quizshare/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Graded is one answer with its correctness, derived from the selected choice.
type Graded struct {
	Answer    domain.Answer
	IsCorrect bool
}

type Result struct {
	Total   int
	Correct int
	// Score is 100 * Correct / Total, or zero for a quiz without questions.
	Score   decimal.Decimal
	Answers []Graded
}

// Compute grades answers against questions. Answers to questions that are no longer
// part of the quiz are reported but never counted.
func Compute(questions []domain.Question, answers []domain.Answer) Result {
	byQuestion := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byQuestion[q.QuestionID] = q
	}

	res := Result{
		Total:   len(questions),
		Score:   decimal.Zero,
		Answers: make([]Graded, 0, len(answers)),
	}

	for _, a := range answers {
		g := Graded{Answer: a}
		if q, ok := byQuestion[a.QuestionID]; ok {
			if c, ok := q.Choice(a.ChoiceID); ok && c.IsCorrect {
				g.IsCorrect = true
				res.Correct++
			}
		}
		res.Answers = append(res.Answers, g)
	}

	if res.Total > 0 {
		res.Score = decimal.NewFromInt(int64(res.Correct)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(res.Total)))
	}

	return res
}
