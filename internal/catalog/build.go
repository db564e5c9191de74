package catalog

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/store"
)

type BuildQuizRequest struct {
	Viewer          domain.Viewer
	Title           string
	Description     string
	DurationMinutes int
	IsPublic        bool
	Extraction      domain.Extraction
}

// BuildQuizFromExtraction creates a quiz with all extracted questions and choices in
// one transaction. Questions and choices are ordered by their input position.
// Nothing is stored when the extraction is malformed or any insert fails.
func (s *Service) BuildQuizFromExtraction(ctx context.Context, req BuildQuizRequest) (*domain.Quiz, error) {
	if err := requireUser(req.Viewer); err != nil {
		return nil, err
	}

	if err := s.validateExtraction(req.Extraction); err != nil {
		return nil, err
	}

	q, err := s.newQuiz(CreateQuizRequest{
		Viewer:          req.Viewer,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		IsPublic:        req.IsPublic,
	})
	if err != nil {
		return nil, err
	}

	questions, err := s.extractedQuestions(q.QuizID, req.Extraction)
	if err != nil {
		return nil, err
	}

	err = s.insertQuiz(ctx, &q, func(tx store.Tx) error {
		for _, qs := range questions {
			if err := tx.InsertQuestion(ctx, qs); err != nil {
				return err
			}
			for _, c := range qs.Choices {
				if err := tx.InsertChoice(ctx, c); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	q.Questions = questions
	slog.InfoContext(ctx, "catalog: quiz built from extraction",
		"quiz", q.QuizID,
		"questions", len(questions),
	)

	return &q, nil
}

func (s *Service) validateExtraction(e domain.Extraction) error {
	err := s.validate.Struct(e)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Namespace())
		}
		return errors.Validation("malformed extraction: missing %s", strings.Join(fields, ", "))
	}

	return errors.Validation("malformed extraction: %v", err)
}

func (s *Service) extractedQuestions(quizID string, e domain.Extraction) ([]domain.Question, error) {
	now := s.now()

	questions := make([]domain.Question, 0, len(e.Questions))
	for i, eq := range e.Questions {
		qid, err := newID()
		if err != nil {
			return nil, err
		}

		q := domain.Question{
			QuestionID: qid,
			QuizID:     quizID,
			Text:       *eq.QuestionText,
			Order:      i,
			CreateTime: now,
			Choices:    make([]domain.Choice, 0, len(eq.Choices)),
		}

		for j, ec := range eq.Choices {
			cid, err := newID()
			if err != nil {
				return nil, err
			}

			q.Choices = append(q.Choices, domain.Choice{
				ChoiceID:   cid,
				QuestionID: qid,
				Text:       *ec.ChoiceText,
				IsCorrect:  ec.IsCorrect,
				Order:      j,
				CreateTime: now,
			})
		}

		questions = append(questions, q)
	}

	return questions, nil
}
