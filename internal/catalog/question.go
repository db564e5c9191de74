package catalog

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/victornm/quizshare/internal/access"
	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/store"
)

// editable authorizes a structural edit of the quiz: the viewer needs edit rights
// and, unless edits during attempts are allowed, no attempt may be in progress.
func (s *Service) editable(ctx context.Context, tx store.Tx, viewer domain.Viewer, quizID string) error {
	q, a, err := AuthorizeTx(ctx, tx, viewer, quizID)
	if err != nil {
		return err
	}
	if !a.CanEdit() {
		return errors.Permission("no edit access to quiz: quiz=%s", quizID)
	}

	if s.allowEdits {
		return nil
	}

	open, err := tx.ListSessions(ctx, store.SessionFilter{QuizID: quizID, OpenOnly: true})
	if err != nil {
		return err
	}

	now := s.now()
	for _, ss := range open {
		if !ss.TimedOut(now, q.Duration()) {
			return errors.State("quiz has attempts in progress: quiz=%s", quizID)
		}
	}

	return nil
}

// questionOf loads a question. A non-empty quizID must match the question's quiz.
func (s *Service) questionOf(ctx context.Context, tx store.Tx, quizID, questionID string) (domain.Question, error) {
	q, err := tx.GetQuestion(ctx, questionID)
	if stderrors.Is(err, store.ErrNotFound) || (err == nil && quizID != "" && q.QuizID != quizID) {
		return domain.Question{}, errors.NotFound("question not found: quiz=%s, question=%s", quizID, questionID)
	}
	return q, err
}

// choiceOf loads a choice. A non-empty questionID must match the choice's question.
func (s *Service) choiceOf(ctx context.Context, tx store.Tx, questionID, choiceID string) (domain.Choice, error) {
	c, err := tx.GetChoice(ctx, choiceID)
	if stderrors.Is(err, store.ErrNotFound) || (err == nil && questionID != "" && c.QuestionID != questionID) {
		return domain.Choice{}, errors.NotFound("choice not found: question=%s, choice=%s", questionID, choiceID)
	}
	return c, err
}

func validateOrder(order int) error {
	if order < 0 {
		return errors.Validation("order must not be negative: order=%d", order)
	}
	return nil
}

func validateText(field, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.Validation("%s is required", field)
	}
	return text, nil
}

type CreateQuestionRequest struct {
	Viewer domain.Viewer
	QuizID string
	Text   string
	Order  int
}

func (s *Service) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*domain.Question, error) {
	text, err := validateText("text", req.Text)
	if err != nil {
		return nil, err
	}
	if err := validateOrder(req.Order); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}

	q := domain.Question{
		QuestionID: id,
		QuizID:     req.QuizID,
		Text:       text,
		Order:      req.Order,
		CreateTime: s.now(),
	}

	err = s.store.Update(ctx, func(tx store.Tx) error {
		if err := s.editable(ctx, tx, req.Viewer, req.QuizID); err != nil {
			return err
		}
		return tx.InsertQuestion(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	return &q, nil
}

type UpdateQuestionRequest struct {
	Viewer     domain.Viewer
	QuizID     string
	QuestionID string
	Text       *string
	Order      *int
}

func (s *Service) UpdateQuestion(ctx context.Context, req UpdateQuestionRequest) (*domain.Question, error) {
	var q domain.Question
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if q, err = s.questionOf(ctx, tx, req.QuizID, req.QuestionID); err != nil {
			return err
		}
		if err := s.editable(ctx, tx, req.Viewer, q.QuizID); err != nil {
			return err
		}

		if req.Text != nil {
			if q.Text, err = validateText("text", *req.Text); err != nil {
				return err
			}
		}
		if req.Order != nil {
			if err := validateOrder(*req.Order); err != nil {
				return err
			}
			q.Order = *req.Order
		}

		return tx.UpdateQuestion(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	return &q, nil
}

type DeleteQuestionRequest struct {
	Viewer     domain.Viewer
	QuizID     string
	QuestionID string
}

func (s *Service) DeleteQuestion(ctx context.Context, req DeleteQuestionRequest) error {
	return s.store.Update(ctx, func(tx store.Tx) error {
		q, err := s.questionOf(ctx, tx, req.QuizID, req.QuestionID)
		if err != nil {
			return err
		}
		if err := s.editable(ctx, tx, req.Viewer, q.QuizID); err != nil {
			return err
		}

		return tx.DeleteQuestion(ctx, q.QuestionID)
	})
}

type ListQuestionsRequest struct {
	Viewer domain.Viewer
	QuizID string
}

// ListQuestions returns the quiz's questions with their choices, in display order.
func (s *Service) ListQuestions(ctx context.Context, req ListQuestionsRequest) ([]domain.Question, access.Access, error) {
	var (
		qs []domain.Question
		a  access.Access
	)
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if _, a, err = AuthorizeTx(ctx, tx, req.Viewer, req.QuizID); err != nil {
			return err
		}
		if !a.CanView() {
			return errors.Permission("no access to quiz: quiz=%s", req.QuizID)
		}

		qs, err = tx.ListQuestions(ctx, req.QuizID)
		return err
	})
	return qs, a, err
}

type CreateChoiceRequest struct {
	Viewer     domain.Viewer
	QuestionID string
	Text       string
	IsCorrect  bool
	Order      int
}

func (s *Service) CreateChoice(ctx context.Context, req CreateChoiceRequest) (*domain.Choice, error) {
	text, err := validateText("text", req.Text)
	if err != nil {
		return nil, err
	}
	if err := validateOrder(req.Order); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}

	c := domain.Choice{
		ChoiceID:   id,
		QuestionID: req.QuestionID,
		Text:       text,
		IsCorrect:  req.IsCorrect,
		Order:      req.Order,
		CreateTime: s.now(),
	}

	err = s.store.Update(ctx, func(tx store.Tx) error {
		q, err := s.questionOf(ctx, tx, "", req.QuestionID)
		if err != nil {
			return err
		}
		if err := s.editable(ctx, tx, req.Viewer, q.QuizID); err != nil {
			return err
		}

		return tx.InsertChoice(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	return &c, nil
}

type UpdateChoiceRequest struct {
	Viewer     domain.Viewer
	QuestionID string
	ChoiceID   string
	Text       *string
	IsCorrect  *bool
	Order      *int
}

func (s *Service) UpdateChoice(ctx context.Context, req UpdateChoiceRequest) (*domain.Choice, error) {
	var c domain.Choice
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if c, err = s.choiceOf(ctx, tx, req.QuestionID, req.ChoiceID); err != nil {
			return err
		}
		q, err := s.questionOf(ctx, tx, "", c.QuestionID)
		if err != nil {
			return err
		}
		if err := s.editable(ctx, tx, req.Viewer, q.QuizID); err != nil {
			return err
		}

		if req.Text != nil {
			if c.Text, err = validateText("text", *req.Text); err != nil {
				return err
			}
		}
		if req.IsCorrect != nil {
			c.IsCorrect = *req.IsCorrect
		}
		if req.Order != nil {
			if err := validateOrder(*req.Order); err != nil {
				return err
			}
			c.Order = *req.Order
		}

		return tx.UpdateChoice(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	return &c, nil
}

type DeleteChoiceRequest struct {
	Viewer     domain.Viewer
	QuestionID string
	ChoiceID   string
}

func (s *Service) DeleteChoice(ctx context.Context, req DeleteChoiceRequest) error {
	return s.store.Update(ctx, func(tx store.Tx) error {
		c, err := s.choiceOf(ctx, tx, req.QuestionID, req.ChoiceID)
		if err != nil {
			return err
		}
		q, err := s.questionOf(ctx, tx, "", c.QuestionID)
		if err != nil {
			return err
		}
		if err := s.editable(ctx, tx, req.Viewer, q.QuizID); err != nil {
			return err
		}

		return tx.DeleteChoice(ctx, c.ChoiceID)
	})
}

type ListChoicesRequest struct {
	Viewer     domain.Viewer
	QuestionID string
}

func (s *Service) ListChoices(ctx context.Context, req ListChoicesRequest) ([]domain.Choice, access.Access, error) {
	var (
		cs []domain.Choice
		a  access.Access
	)
	err := s.store.View(ctx, func(tx store.Tx) error {
		q, err := s.questionOf(ctx, tx, "", req.QuestionID)
		if err != nil {
			return err
		}
		if _, a, err = AuthorizeTx(ctx, tx, req.Viewer, q.QuizID); err != nil {
			return err
		}
		if !a.CanView() {
			return errors.Permission("no access to quiz: quiz=%s", q.QuizID)
		}

		cs, err = tx.ListChoices(ctx, q.QuestionID)
		return err
	})
	return cs, a, err
}
