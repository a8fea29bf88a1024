package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/ulugbekw/imtihon/internal/dto"
	"github.com/ulugbekw/imtihon/internal/model"
	"github.com/ulugbekw/imtihon/internal/repository"
	"gorm.io/gorm"
)

// TestService covers authoring and read access to scheduled tests. Reads
// arm the deadline scheduler for active tests, so any classification
// request guarantees the deadline timer is running.
type TestService interface {
	CreateTest(teacherID uint, req dto.TestCreateDTO) (*dto.TestResponseDTO, error)
	// GetTest returns the test with its server-side window classification.
	// For students the correct-option flags are stripped.
	GetTest(testID uint, includeCorrect bool) (*dto.TestResponseDTO, error)
	ListSubjectTests(subjectID, userID uint) ([]dto.TestSummaryDTO, error)
	// DeleteTest removes an upcoming test. Rejected with ErrTestImmutable
	// once any result exists.
	DeleteTest(testID, teacherID uint) error
	TestResults(testID uint) ([]dto.TestResultRowDTO, error)
}

type testService struct {
	testRepo    repository.TestRepository
	subjectRepo repository.SubjectRepository
	resultRepo  repository.ResultRepository
	scheduler   DeadlineScheduler
}

func NewTestService(
	testRepo repository.TestRepository,
	subjectRepo repository.SubjectRepository,
	resultRepo repository.ResultRepository,
	scheduler DeadlineScheduler,
) TestService {
	return &testService{
		testRepo:    testRepo,
		subjectRepo: subjectRepo,
		resultRepo:  resultRepo,
		scheduler:   scheduler,
	}
}

func (s *testService) CreateTest(teacherID uint, req dto.TestCreateDTO) (*dto.TestResponseDTO, error) {
	subject, err := s.subjectRepo.FindByID(req.SubjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subject %d not found: %w", req.SubjectID, err)
		}
		return nil, fmt.Errorf("loading subject %d: %w", req.SubjectID, err)
	}
	if subject.TeacherID != teacherID {
		return nil, ErrForbidden
	}

	if !req.StartAt.Before(req.EndAt) {
		return nil, ErrInvalidWindow
	}

	test := model.Test{
		Title:     req.Title,
		SubjectID: req.SubjectID,
		TeacherID: teacherID,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
	}
	for i, qDto := range req.Questions {
		if len(qDto.Options) < 2 {
			return nil, fmt.Errorf("question %d must have at least 2 options, got %d", i+1, len(qDto.Options))
		}
		correctCount := 0
		question := model.Question{Text: qDto.Text, OrderNum: i + 1}
		for j, oDto := range qDto.Options {
			if oDto.IsCorrect {
				correctCount++
			}
			question.Options = append(question.Options, model.Option{
				Text:      oDto.Text,
				OrderNum:  j + 1,
				IsCorrect: oDto.IsCorrect,
			})
		}
		if correctCount != 1 {
			return nil, fmt.Errorf("question %d must have exactly one correct option, got %d", i+1, correctCount)
		}
		test.Questions = append(test.Questions, question)
	}

	if err := s.testRepo.Create(&test); err != nil {
		log.Error().Err(err).Uint("subjectID", req.SubjectID).Msg("Failed to create test")
		return nil, fmt.Errorf("creating test: %w", err)
	}

	log.Info().Uint("testID", test.ID).Uint("teacherID", teacherID).Time("startAt", test.StartAt).Time("endAt", test.EndAt).Msg("Test scheduled")
	return s.buildTestResponse(&test, true), nil
}

func (s *testService) GetTest(testID uint, includeCorrect bool) (*dto.TestResponseDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("loading test %d: %w", testID, err)
	}

	s.scheduler.EnsureArmed(TimedTest{ID: test.ID, StartAt: test.StartAt, EndAt: test.EndAt, ClosedOut: test.ClosedOutAt != nil})
	return s.buildTestResponse(test, includeCorrect), nil
}

func (s *testService) ListSubjectTests(subjectID, userID uint) ([]dto.TestSummaryDTO, error) {
	tests, err := s.testRepo.FindBySubject(subjectID)
	if err != nil {
		return nil, fmt.Errorf("listing tests for subject %d: %w", subjectID, err)
	}

	now := time.Now()
	summaries := make([]dto.TestSummaryDTO, 0, len(tests))
	for _, t := range tests {
		summary := dto.TestSummaryDTO{
			ID:        t.ID,
			Title:     t.Title,
			StartAt:   t.StartAt,
			EndAt:     t.EndAt,
			Window:    string(ClassifyWindow(now, t.StartAt, t.EndAt)),
			CreatedAt: t.CreatedAt,
		}
		result, err := s.resultRepo.FindByTestAndUser(t.ID, userID)
		if err == nil {
			summary.Finished = result.Finished
			score := result.Score
			summary.Score = &score
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("loading result for test %d user %d: %w", t.ID, userID, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *testService) DeleteTest(testID, teacherID uint) error {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTestNotFound
		}
		return fmt.Errorf("loading test %d: %w", testID, err)
	}
	if test.TeacherID != teacherID {
		return ErrForbidden
	}

	hasResults, err := s.resultRepo.ExistsForTest(testID)
	if err != nil {
		return fmt.Errorf("checking results for test %d: %w", testID, err)
	}
	if hasResults {
		return ErrTestImmutable
	}

	if err := s.testRepo.Delete(testID); err != nil {
		return fmt.Errorf("deleting test %d: %w", testID, err)
	}
	log.Info().Uint("testID", testID).Uint("teacherID", teacherID).Msg("Test deleted")
	return nil
}

func (s *testService) TestResults(testID uint) ([]dto.TestResultRowDTO, error) {
	results, err := s.resultRepo.FindAllByTest(testID)
	if err != nil {
		return nil, fmt.Errorf("loading results for test %d: %w", testID, err)
	}

	rows := make([]dto.TestResultRowDTO, len(results))
	for i, r := range results {
		rows[i] = dto.TestResultRowDTO{
			UserID:     r.UserID,
			Student:    r.User.Name,
			Score:      r.Score,
			Finished:   r.Finished,
			FinishedAt: r.FinishedAt,
		}
	}
	return rows, nil
}

func (s *testService) buildTestResponse(test *model.Test, includeCorrect bool) *dto.TestResponseDTO {
	var resp dto.TestResponseDTO
	if err := copier.Copy(&resp, test); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("Failed to copy test model to DTO")
	}
	resp.Window = string(ClassifyWindow(time.Now(), test.StartAt, test.EndAt))

	resp.Questions = make([]dto.QuestionResponseDTO, len(test.Questions))
	for i, q := range test.Questions {
		qDto := dto.QuestionResponseDTO{
			ID:       q.ID,
			TestID:   q.TestID,
			Text:     q.Text,
			OrderNum: q.OrderNum,
		}
		for _, opt := range q.Options {
			oDto := dto.OptionResponseDTO{ID: opt.ID, Text: opt.Text, OrderNum: opt.OrderNum}
			if includeCorrect {
				correct := opt.IsCorrect
				oDto.IsCorrect = &correct
			}
			qDto.Options = append(qDto.Options, oDto)
		}
		resp.Questions[i] = qDto
	}
	return &resp
}
