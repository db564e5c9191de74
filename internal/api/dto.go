package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizshare/internal/access"
	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/score"
	"github.com/victornm/quizshare/internal/session"
)

type (
	User struct {
		ID         string    `json:"id"`
		Username   string    `json:"username"`
		Email      string    `json:"email"`
		FirstName  string    `json:"first_name"`
		LastName   string    `json:"last_name"`
		CreateTime time.Time `json:"created_at"`
	}

	Quiz struct {
		ID                     string     `json:"id"`
		Title                  string     `json:"title"`
		Description            string     `json:"description"`
		CreatorID              string     `json:"creator_id"`
		DurationMinutes        int        `json:"duration_minutes"`
		IsPublic               bool       `json:"is_public"`
		AllowAnonymousAttempts bool       `json:"allow_anonymous_attempts"`
		ShareCode              string     `json:"share_code"`
		CreateTime             time.Time  `json:"created_at"`
		UpdateTime             time.Time  `json:"updated_at"`
		Access                 string     `json:"access,omitempty"`
		Questions              []Question `json:"questions,omitempty"`
	}

	Question struct {
		ID         string    `json:"id"`
		QuizID     string    `json:"quiz_id"`
		Text       string    `json:"text"`
		Order      int       `json:"order"`
		CreateTime time.Time `json:"created_at"`
		Choices    []Choice  `json:"choices"`
	}

	// Choice carries IsCorrect only for viewers allowed to see answers.
	Choice struct {
		ID         string `json:"id"`
		QuestionID string `json:"question_id"`
		Text       string `json:"text"`
		IsCorrect  *bool  `json:"is_correct,omitempty"`
		Order      int    `json:"order"`
	}

	Share struct {
		ID         string    `json:"id"`
		QuizID     string    `json:"quiz_id"`
		GranterID  string    `json:"shared_by"`
		GranteeID  string    `json:"shared_with"`
		Permission string    `json:"permission"`
		ShareTime  time.Time `json:"shared_at"`
	}

	Session struct {
		ID           string           `json:"id"`
		QuizID       string           `json:"quiz_id"`
		UserID       string           `json:"user_id,omitempty"`
		StartTime    time.Time        `json:"started_at"`
		CompleteTime *time.Time       `json:"completed_at"`
		Score        *decimal.Decimal `json:"score"`
		State        string           `json:"state,omitempty"`
		Deadline     *time.Time       `json:"deadline,omitempty"`
		Answers      []Answer         `json:"answers,omitempty"`
	}

	Answer struct {
		ID         string    `json:"id"`
		QuestionID string    `json:"question_id"`
		ChoiceID   string    `json:"choice_id"`
		IsCorrect  *bool     `json:"is_correct,omitempty"`
		AnswerTime time.Time `json:"answered_at"`
	}

	Result struct {
		Session        Session         `json:"session"`
		QuizTitle      string          `json:"quiz_title"`
		TotalQuestions int             `json:"total_questions"`
		CorrectAnswers int             `json:"correct_answers"`
		Score          decimal.Decimal `json:"score"`
		Answers        []Answer        `json:"answers"`
	}

	Upload struct {
		ID              string `json:"id"`
		Processed       bool   `json:"processed"`
		ParsedData      any    `json:"parsed_data"`
		ExtractionError string `json:"extraction_error,omitempty"`
	}
)

func toUser(u *domain.User) User {
	return User{
		ID:         u.UserID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		CreateTime: u.CreateTime,
	}
}

func toQuiz(q domain.Quiz) Quiz {
	return Quiz{
		ID:                     q.QuizID,
		Title:                  q.Title,
		Description:            q.Description,
		CreatorID:              q.CreatorID,
		DurationMinutes:        q.DurationMinutes,
		IsPublic:               q.IsPublic,
		AllowAnonymousAttempts: q.AllowAnonymousAttempts,
		ShareCode:              q.ShareCode,
		CreateTime:             q.CreateTime,
		UpdateTime:             q.UpdateTime,
	}
}

func toQuizzes(qs []domain.Quiz) []Quiz {
	res := make([]Quiz, 0, len(qs))
	for _, q := range qs {
		res = append(res, toQuiz(q))
	}
	return res
}

func toQuizDetail(q domain.Quiz, a access.Access) Quiz {
	res := toQuiz(q)
	res.Access = a.Level.String()
	res.Questions = toQuestions(q.Questions, a.CanSeeAnswers())
	return res
}

func toQuestion(q domain.Question, answers bool) Question {
	return Question{
		ID:         q.QuestionID,
		QuizID:     q.QuizID,
		Text:       q.Text,
		Order:      q.Order,
		CreateTime: q.CreateTime,
		Choices:    toChoices(q.Choices, answers),
	}
}

func toQuestions(qs []domain.Question, answers bool) []Question {
	res := make([]Question, 0, len(qs))
	for _, q := range qs {
		res = append(res, toQuestion(q, answers))
	}
	return res
}

func toChoice(c domain.Choice, answers bool) Choice {
	res := Choice{
		ID:         c.ChoiceID,
		QuestionID: c.QuestionID,
		Text:       c.Text,
		Order:      c.Order,
	}
	if answers {
		correct := c.IsCorrect
		res.IsCorrect = &correct
	}
	return res
}

func toChoices(cs []domain.Choice, answers bool) []Choice {
	res := make([]Choice, 0, len(cs))
	for _, c := range cs {
		res = append(res, toChoice(c, answers))
	}
	return res
}

func toShare(s domain.Share) Share {
	return Share{
		ID:         s.ShareID,
		QuizID:     s.QuizID,
		GranterID:  s.GranterID,
		GranteeID:  s.GranteeID,
		Permission: string(s.Permission),
		ShareTime:  s.ShareTime,
	}
}

func toShares(ss []domain.Share) []Share {
	res := make([]Share, 0, len(ss))
	for _, s := range ss {
		res = append(res, toShare(s))
	}
	return res
}

func toSession(ss domain.Session) Session {
	return Session{
		ID:           ss.SessionID,
		QuizID:       ss.QuizID,
		UserID:       ss.UserID,
		StartTime:    ss.StartTime,
		CompleteTime: ss.CompleteTime,
		Score:        ss.Score,
	}
}

func toSessions(ss []domain.Session) []Session {
	res := make([]Session, 0, len(ss))
	for _, s := range ss {
		res = append(res, toSession(s))
	}
	return res
}

// toSessionDetail leaves answers ungraded: correctness is only shown in results.
func toSessionDetail(d *session.Detail) Session {
	res := toSession(d.Session)
	res.State = string(d.State)
	res.Deadline = &d.Deadline
	res.Answers = make([]Answer, 0, len(d.Answers))
	for _, a := range d.Answers {
		res.Answers = append(res.Answers, toAnswer(a, nil))
	}
	return res
}

func toAnswer(a domain.Answer, correct *bool) Answer {
	return Answer{
		ID:         a.AnswerID,
		QuestionID: a.QuestionID,
		ChoiceID:   a.ChoiceID,
		IsCorrect:  correct,
		AnswerTime: a.AnswerTime,
	}
}

func toResult(r *session.Result) Result {
	res := Result{
		Session:        toSession(r.Session),
		QuizTitle:      r.Quiz.Title,
		TotalQuestions: r.Total,
		CorrectAnswers: r.Correct,
		Score:          r.Score,
		Answers:        make([]Answer, 0, len(r.Answers)),
	}
	for _, g := range r.Answers {
		res.Answers = append(res.Answers, toGraded(g))
	}
	res.Session.State = string(domain.SessionCompleted)
	return res
}

func toGraded(g score.Graded) Answer {
	correct := g.IsCorrect
	return toAnswer(g.Answer, &correct)
}
