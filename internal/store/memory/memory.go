// Package memory is an in-process implementation of store.Store. Update blocks
// run one at a time against a copy of the data that replaces the original only
// when the block succeeds.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/store"
)

// ErrReadOnly is returned by writes attempted inside View.
var ErrReadOnly = errors.New("memory: write in read-only transaction")

type Store struct {
	mu   sync.RWMutex
	data *data
}

func New() *Store {
	return &Store{data: newData()}
}

func (s *Store) Update(_ context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.data.clone()
	if err := fn(&tx{d: d}); err != nil {
		return err
	}

	s.data = d
	return nil
}

func (s *Store) View(_ context.Context, fn func(tx store.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&tx{d: s.data, readOnly: true})
}

type data struct {
	seq       int64
	users     map[string]domain.User
	quizzes   map[string]domain.Quiz
	questions map[string]domain.Question
	choices   map[string]domain.Choice
	shares    map[string]domain.Share
	sessions  map[string]domain.Session
	answers   map[string]domain.Answer
	uploads   map[string]domain.ImageUpload

	// insertion sequence, used as the last ordering tie-break
	order map[string]int64
}

func newData() *data {
	return &data{
		users:     make(map[string]domain.User),
		quizzes:   make(map[string]domain.Quiz),
		questions: make(map[string]domain.Question),
		choices:   make(map[string]domain.Choice),
		shares:    make(map[string]domain.Share),
		sessions:  make(map[string]domain.Session),
		answers:   make(map[string]domain.Answer),
		uploads:   make(map[string]domain.ImageUpload),
		order:     make(map[string]int64),
	}
}

func (d *data) clone() *data {
	c := &data{
		seq:       d.seq,
		users:     cloneMap(d.users),
		quizzes:   cloneMap(d.quizzes),
		questions: cloneMap(d.questions),
		choices:   cloneMap(d.choices),
		shares:    cloneMap(d.shares),
		sessions:  cloneMap(d.sessions),
		answers:   cloneMap(d.answers),
		uploads:   cloneMap(d.uploads),
		order:     cloneMap(d.order),
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (d *data) track(id string) {
	d.seq++
	d.order[id] = d.seq
}

type tx struct {
	d        *data
	readOnly bool
}

var _ store.Tx = (*tx)(nil)

func (t *tx) InsertUser(_ context.Context, u domain.User) error {
	if t.readOnly {
		return ErrReadOnly
	}
	for _, existing := range t.d.users {
		if strings.EqualFold(existing.Username, u.Username) || (u.Email != "" && strings.EqualFold(existing.Email, u.Email)) {
			return store.ErrConflict
		}
	}
	if _, ok := t.d.users[u.UserID]; ok {
		return store.ErrConflict
	}

	t.d.users[u.UserID] = u
	t.d.track(u.UserID)
	return nil
}

func (t *tx) GetUser(_ context.Context, userID string) (domain.User, error) {
	u, ok := t.d.users[userID]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (t *tx) FindUser(_ context.Context, identifier string) (domain.User, error) {
	for _, u := range t.d.users {
		if strings.Contains(identifier, "@") {
			if strings.EqualFold(u.Email, identifier) {
				return u, nil
			}
			continue
		}
		if strings.EqualFold(u.Username, identifier) {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (t *tx) UpdateUser(_ context.Context, u domain.User) error {
	if t.readOnly {
		return ErrReadOnly
	}
	cur, ok := t.d.users[u.UserID]
	if !ok {
		return store.ErrNotFound
	}
	for id, existing := range t.d.users {
		if id != u.UserID && u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return store.ErrConflict
		}
	}

	u.Username = cur.Username
	u.CreateTime = cur.CreateTime
	t.d.users[u.UserID] = u
	return nil
}

func (t *tx) InsertQuiz(_ context.Context, q domain.Quiz) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.d.quizzes[q.QuizID]; ok {
		return store.ErrConflict
	}
	for _, existing := range t.d.quizzes {
		if existing.ShareCode == q.ShareCode {
			return store.ErrConflict
		}
	}

	q.Questions = nil
	t.d.quizzes[q.QuizID] = q
	t.d.track(q.QuizID)
	return nil
}

func (t *tx) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	q, ok := t.d.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, store.ErrNotFound
	}
	return q, nil
}

func (t *tx) GetQuizByShareCode(_ context.Context, code string) (domain.Quiz, error) {
	for _, q := range t.d.quizzes {
		if q.ShareCode == code {
			return q, nil
		}
	}
	return domain.Quiz{}, store.ErrNotFound
}

func (t *tx) UpdateQuiz(_ context.Context, q domain.Quiz) error {
	if t.readOnly {
		return ErrReadOnly
	}
	existing, ok := t.d.quizzes[q.QuizID]
	if !ok {
		return store.ErrNotFound
	}

	// creator and share code never change
	q.CreatorID = existing.CreatorID
	q.ShareCode = existing.ShareCode
	q.CreateTime = existing.CreateTime
	q.Questions = nil
	t.d.quizzes[q.QuizID] = q
	return nil
}

func (t *tx) DeleteQuiz(_ context.Context, quizID string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.d.quizzes[quizID]; !ok {
		return store.ErrNotFound
	}

	for id, q := range t.d.questions {
		if q.QuizID == quizID {
			t.deleteQuestion(id)
		}
	}
	for id, s := range t.d.sessions {
		if s.QuizID == quizID {
			t.deleteSession(id)
		}
	}
	for id, s := range t.d.shares {
		if s.QuizID == quizID {
			delete(t.d.shares, id)
		}
	}
	delete(t.d.quizzes, quizID)
	return nil
}

func (t *tx) ListQuizzes(_ context.Context, f store.QuizFilter) ([]domain.Quiz, error) {
	shared := make(map[string]bool)
	if f.SharedWith != "" {
		for _, s := range t.d.shares {
			if s.GranteeID == f.SharedWith {
				shared[s.QuizID] = true
			}
		}
	}

	var res []domain.Quiz
	for _, q := range t.d.quizzes {
		if (f.Public && q.IsPublic) || (f.CreatorID != "" && q.CreatorID == f.CreatorID) || shared[q.QuizID] {
			res = append(res, q)
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return t.d.order[res[i].QuizID] > t.d.order[res[j].QuizID]
	})
	return res, nil
}

func (t *tx) InsertQuestion(_ context.Context, q domain.Question) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.d.quizzes[q.QuizID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := t.d.questions[q.QuestionID]; ok {
		return store.ErrConflict
	}

	q.Choices = nil
	t.d.questions[q.QuestionID] = q
	t.d.track(q.QuestionID)
	return nil
}

func (t *tx) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	q, ok := t.d.questions[questionID]
	if !ok {
		return domain.Question{}, store.ErrNotFound
	}
	return q, nil
}

func (t *tx) UpdateQuestion(_ context.Context, q domain.Question) error {
	if t.readOnly {
		return ErrReadOnly
	}
	existing, ok := t.d.questions[q.QuestionID]
	if !ok {
		return store.ErrNotFound
	}

	existing.Text = q.Text
	existing.Order = q.Order
	t.d.questions[q.QuestionID] = existing
	return nil
}

func (t *tx) DeleteQuestion(_ context.Context, questionID string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.d.questions[questionID]; !ok {
		return store.ErrNotFound
	}
	t.deleteQuestion(questionID)
	return nil
}

func (t *tx) deleteQuestion(questionID string) {
	for id, c := range t.d.choices {
		if c.QuestionID == questionID {
			t.deleteChoice(id)
		}
	}
	for id, a := range t.d.answers {
		if a.QuestionID == questionID {
			delete(t.d.answers, id)
		}
	}
	delete(t.d.questions, questionID)
}

func (t *tx) ListQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	byQuestion := make(map[string][]domain.Choice)
	for _, c := range t.d.choices {
		byQuestion[c.QuestionID] = append(byQuestion[c.QuestionID], c)
	}

	var res []domain.Question
	for _, q := range t.d.questions {
		if q.QuizID != quizID {
			continue
		}
		q.Choices = byQuestion[q.QuestionID]
		t.sortChoices(q.Choices)
		res = append(res, q)
	}

	t.sortQuestions(res)
	return res, nil
}

func (t *tx) CountQuestions(_ context.Context, quizID string) (int, error) {
	n := 0
	for _, q := range t.d.questions {
		if q.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertChoice(_ context.Context, c domain.Choice) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.d.questions[c.QuestionID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := t.d.choices[c.ChoiceID]; ok {
		return store.ErrConflict
	}

	t.d.choices[c.ChoiceID] = c
	t.d.track(c.ChoiceID)
	return nil
}

func (t *tx) GetChoice(_ context.Context, choiceID string) (domain.Choice, error) {
	c, ok := t.d.choices[choiceID]
	if !ok {
		return domain.Choice{}, store.ErrNotFound
	}
	return c, nil
}

func (t *tx) UpdateChoice(_ context.Context, c domain.Choice) error {
	if t.readOnly {
		return ErrReadOnly
	}
	existing, ok := t.d.choices[c.ChoiceID]
	if !ok {
		return store.ErrNotFound
	}

	existing.Text = c.Text
	existing.IsCorrect = c.IsCorrect
	existing.Order = c.Order
	t.d.choices[c.ChoiceID] = existing
	return nil
}

func (t *tx) DeleteChoice(_ context.Context, choiceID string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.d.choices[choiceID]; !ok {
		return store.ErrNotFound
	}
	t.deleteChoice(choiceID)
	return nil
}

func (t *tx) deleteChoice(choiceID string) {
	for id, a := range t.d.answers {
		if a.ChoiceID == choiceID {
			delete(t.d.answers, id)
		}
	}
	delete(t.d.choices, choiceID)
}

func (t *tx) ListChoices(_ context.Context, questionID string) ([]domain.Choice, error) {
	var res []domain.Choice
	for _, c := range t.d.choices {
		if c.QuestionID == questionID {
			res = append(res, c)
		}
	}

	t.sortChoices(res)
	return res, nil
}

func (t *tx) UpsertShare(_ context.Context, s domain.Share) (domain.Share, error) {
	if t.readOnly {
		return domain.Share{}, ErrReadOnly
	}
	if _, ok := t.d.quizzes[s.QuizID]; !ok {
		return domain.Share{}, store.ErrNotFound
	}

	for id, existing := range t.d.shares {
		if existing.QuizID == s.QuizID && existing.GranteeID == s.GranteeID {
			existing.Permission = s.Permission
			t.d.shares[id] = existing
			return existing, nil
		}
	}

	t.d.shares[s.ShareID] = s
	t.d.track(s.ShareID)
	return s, nil
}

func (t *tx) GetShare(_ context.Context, quizID, granteeID string) (domain.Share, error) {
	for _, s := range t.d.shares {
		if s.QuizID == quizID && s.GranteeID == granteeID {
			return s, nil
		}
	}
	return domain.Share{}, store.ErrNotFound
}

func (t *tx) ListShares(_ context.Context, f store.ShareFilter) ([]domain.Share, error) {
	var res []domain.Share
	for _, s := range t.d.shares {
		if f.QuizID != "" && s.QuizID != f.QuizID {
			continue
		}
		if f.GranterID != "" && s.GranterID != f.GranterID {
			continue
		}
		if f.GranteeID != "" && s.GranteeID != f.GranteeID {
			continue
		}
		res = append(res, s)
	}

	sort.Slice(res, func(i, j int) bool {
		return t.d.order[res[i].ShareID] > t.d.order[res[j].ShareID]
	})
	return res, nil
}

func (t *tx) InsertSession(_ context.Context, s domain.Session) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.d.quizzes[s.QuizID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := t.d.sessions[s.SessionID]; ok {
		return store.ErrConflict
	}

	t.d.sessions[s.SessionID] = s
	t.d.track(s.SessionID)
	return nil
}

// GetSession ignores forUpdate: Update blocks already run one at a time.
func (t *tx) GetSession(_ context.Context, sessionID string, _ bool) (domain.Session, error) {
	s, ok := t.d.sessions[sessionID]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (t *tx) ListSessions(_ context.Context, f store.SessionFilter) ([]domain.Session, error) {
	var res []domain.Session
	for _, s := range t.d.sessions {
		if f.UserID != "" || f.QuizCreatorID != "" {
			mine := f.UserID != "" && s.UserID == f.UserID
			created := f.QuizCreatorID != "" && t.d.quizzes[s.QuizID].CreatorID == f.QuizCreatorID
			if !mine && !created {
				continue
			}
		}
		if f.QuizID != "" && s.QuizID != f.QuizID {
			continue
		}
		if f.OpenOnly && s.Completed() {
			continue
		}
		res = append(res, s)
	}

	sort.Slice(res, func(i, j int) bool {
		return t.d.order[res[i].SessionID] > t.d.order[res[j].SessionID]
	})
	return res, nil
}

func (t *tx) CompleteSession(_ context.Context, sessionID string, at time.Time, score decimal.Decimal) (bool, error) {
	if t.readOnly {
		return false, ErrReadOnly
	}
	s, ok := t.d.sessions[sessionID]
	if !ok {
		return false, store.ErrNotFound
	}
	if s.Completed() {
		return false, nil
	}

	s.CompleteTime = &at
	s.Score = &score
	t.d.sessions[sessionID] = s
	return true, nil
}

func (t *tx) deleteSession(sessionID string) {
	for id, a := range t.d.answers {
		if a.SessionID == sessionID {
			delete(t.d.answers, id)
		}
	}
	delete(t.d.sessions, sessionID)
}

func (t *tx) UpsertAnswer(_ context.Context, a domain.Answer) (domain.Answer, error) {
	if t.readOnly {
		return domain.Answer{}, ErrReadOnly
	}
	if _, ok := t.d.sessions[a.SessionID]; !ok {
		return domain.Answer{}, store.ErrNotFound
	}
	if _, ok := t.d.questions[a.QuestionID]; !ok {
		return domain.Answer{}, store.ErrNotFound
	}
	if _, ok := t.d.choices[a.ChoiceID]; !ok {
		return domain.Answer{}, store.ErrNotFound
	}

	for id, existing := range t.d.answers {
		if existing.SessionID == a.SessionID && existing.QuestionID == a.QuestionID {
			existing.ChoiceID = a.ChoiceID
			existing.AnswerTime = a.AnswerTime
			t.d.answers[id] = existing
			return existing, nil
		}
	}

	t.d.answers[a.AnswerID] = a
	t.d.track(a.AnswerID)
	return a, nil
}

func (t *tx) ListAnswers(_ context.Context, sessionID string) ([]domain.Answer, error) {
	var res []domain.Answer
	for _, a := range t.d.answers {
		if a.SessionID == sessionID {
			res = append(res, a)
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return t.d.order[res[i].AnswerID] < t.d.order[res[j].AnswerID]
	})
	return res, nil
}

func (t *tx) InsertUpload(_ context.Context, u domain.ImageUpload) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.d.uploads[u.UploadID]; ok {
		return store.ErrConflict
	}

	t.d.uploads[u.UploadID] = u
	t.d.track(u.UploadID)
	return nil
}

func (t *tx) GetUpload(_ context.Context, uploadID string) (domain.ImageUpload, error) {
	u, ok := t.d.uploads[uploadID]
	if !ok {
		return domain.ImageUpload{}, store.ErrNotFound
	}
	return u, nil
}

func (t *tx) UpdateUpload(_ context.Context, u domain.ImageUpload) error {
	if t.readOnly {
		return ErrReadOnly
	}
	existing, ok := t.d.uploads[u.UploadID]
	if !ok {
		return store.ErrNotFound
	}

	existing.Processed = u.Processed
	existing.ParsedData = u.ParsedData
	existing.ExtractionError = u.ExtractionError
	t.d.uploads[u.UploadID] = existing
	return nil
}

func (t *tx) sortQuestions(qs []domain.Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].Order != qs[j].Order {
			return qs[i].Order < qs[j].Order
		}
		return t.d.order[qs[i].QuestionID] < t.d.order[qs[j].QuestionID]
	})
}

func (t *tx) sortChoices(cs []domain.Choice) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Order != cs[j].Order {
			return cs[i].Order < cs[j].Order
		}
		return t.d.order[cs[i].ChoiceID] < t.d.order[cs[j].ChoiceID]
	})
}
