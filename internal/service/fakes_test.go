package service

import (
	"sort"
	"sync"
	"time"

	"github.com/ulugbekw/imtihon/internal/dto"
	"github.com/ulugbekw/imtihon/internal/model"
	"gorm.io/gorm"
)

type resultKey struct {
	testID uint
	userID uint
}

type fakeTestRepo struct {
	mu    sync.Mutex
	tests map[uint]*model.Test

	closedOut map[uint]time.Time
}

func newFakeTestRepo(tests ...*model.Test) *fakeTestRepo {
	r := &fakeTestRepo{
		tests:     make(map[uint]*model.Test),
		closedOut: make(map[uint]time.Time),
	}
	for _, t := range tests {
		r.tests[t.ID] = t
	}
	return r
}

func (r *fakeTestRepo) Create(test *model.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if test.ID == 0 {
		test.ID = uint(len(r.tests) + 1)
	}
	r.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) FindByID(id uint) (*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (r *fakeTestRepo) FindByIDWithQuestions(id uint) (*model.Test, error) {
	return r.FindByID(id)
}

func (r *fakeTestRepo) FindBySubject(subjectID uint) ([]model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Test
	for _, t := range r.tests {
		if t.SubjectID == subjectID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTestRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tests, id)
	return nil
}

func (r *fakeTestRepo) MarkClosedOut(id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closedOut[id] = at
	if t, ok := r.tests[id]; ok {
		t.ClosedOutAt = &at
	}
	return nil
}

func (r *fakeTestRepo) FindExpiredUnclosed(now time.Time) ([]model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Test
	for _, t := range r.tests {
		if !t.EndAt.After(now) && t.ClosedOutAt == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTestRepo) FindActiveUnclosed(now time.Time) ([]model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Test
	for _, t := range r.tests {
		if !t.StartAt.After(now) && t.EndAt.After(now) && t.ClosedOutAt == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTestRepo) markedClosedOut(id uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.closedOut[id]
	return ok
}

type fakeResultRepo struct {
	mu      sync.Mutex
	results map[resultKey]*model.Result
	nextID  uint
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: make(map[resultKey]*model.Result)}
}

func (r *fakeResultRepo) Create(result *model.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := resultKey{result.TestID, result.UserID}
	if _, exists := r.results[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.nextID++
	result.ID = r.nextID
	stored := *result
	r.results[key] = &stored
	return nil
}

func (r *fakeResultRepo) FindByTestAndUser(testID, userID uint) (*model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[resultKey{testID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return res, nil
}

func (r *fakeResultRepo) FindAllByTest(testID uint) ([]model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Result
	for key, res := range r.results {
		if key.testID == testID {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *fakeResultRepo) ExistsForTest(testID uint) (bool, error) {
	all, _ := r.FindAllByTest(testID)
	return len(all) > 0, nil
}

func (r *fakeResultRepo) FindFinishedBySubjectAndUser(subjectID, userID uint) ([]model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Result
	for _, res := range r.results {
		if res.Test.SubjectID == subjectID && res.UserID == userID && res.Finished {
			out = append(out, *res)
		}
	}
	// Most recent first, like the backing query.
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	return out, nil
}

func (r *fakeResultRepo) FindFinishedBySubject(subjectID uint) ([]model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Result
	for _, res := range r.results {
		if res.Test.SubjectID == subjectID && res.Finished {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *fakeResultRepo) FindFinishedBySubjectAndTeacher(subjectID, teacherID uint) ([]model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Result
	for _, res := range r.results {
		if res.Test.SubjectID == subjectID && res.Test.TeacherID == teacherID && res.Finished {
			out = append(out, *res)
		}
	}
	return out, nil
}

type fakeDraftRepo struct {
	mu     sync.Mutex
	drafts map[resultKey][]model.DraftAnswer
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{drafts: make(map[resultKey][]model.DraftAnswer)}
}

func (r *fakeDraftRepo) Upsert(testID, userID uint, answers []model.DraftAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[resultKey{testID, userID}] = answers
	return nil
}

func (r *fakeDraftRepo) FindByTestAndUser(testID, userID uint) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	answers, ok := r.drafts[resultKey{testID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.Draft{TestID: testID, UserID: userID, Answers: answers}, nil
}

func (r *fakeDraftRepo) FindAllByTest(testID uint) ([]model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Draft
	for key, answers := range r.drafts {
		if key.testID == testID {
			out = append(out, model.Draft{TestID: key.testID, UserID: key.userID, Answers: answers})
		}
	}
	return out, nil
}

func (r *fakeDraftRepo) DeleteByTestAndUser(testID, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, resultKey{testID, userID})
	return nil
}

func (r *fakeDraftRepo) has(testID, userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.drafts[resultKey{testID, userID}]
	return ok
}

type fakeGrader struct {
	mu       sync.Mutex
	closeOut []uint
	err      error
}

func (g *fakeGrader) Submit(testID, userID uint, answers []dto.AnswerDTO) (*dto.SubmitResponseDTO, error) {
	panic("not used")
}

func (g *fakeGrader) CloseOut(testID uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.closeOut = append(g.closeOut, testID)
	return nil
}

func (g *fakeGrader) closeOutCalls() []uint {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]uint, len(g.closeOut))
	copy(out, g.closeOut)
	return out
}

type fakeSubjectRepo struct {
	subjects map[uint]*model.Subject
}

func newFakeSubjectRepo(subjects ...*model.Subject) *fakeSubjectRepo {
	r := &fakeSubjectRepo{subjects: make(map[uint]*model.Subject)}
	for _, s := range subjects {
		r.subjects[s.ID] = s
	}
	return r
}

func (r *fakeSubjectRepo) FindByID(id uint) (*model.Subject, error) {
	s, ok := r.subjects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

type fakeUserRepo struct {
	users map[uint]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uint]*model.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(id uint) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

// nopScheduler satisfies DeadlineScheduler where arming is irrelevant.
type nopScheduler struct{}

func (nopScheduler) EnsureArmed(TimedTest) {}
func (nopScheduler) Recover() error        { return nil }
func (nopScheduler) Shutdown()             {}

// twoOptionQuestion builds a question whose first option is correct.
func twoOptionQuestion(id, correctOptID, wrongOptID uint) model.Question {
	return model.Question{
		ID: id,
		Options: []model.Option{
			{ID: correctOptID, QuestionID: id, IsCorrect: true},
			{ID: wrongOptID, QuestionID: id},
		},
	}
}
