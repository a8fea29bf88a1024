package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ulugbekw/imtihon/internal/dto"
	"github.com/ulugbekw/imtihon/internal/model"
	"github.com/ulugbekw/imtihon/internal/repository"
	"gorm.io/gorm"
)

// DraftService keeps a participant's in-progress answers server-side so a
// client crash or reload loses nothing, and the deadline close-out pass
// has something to score.
type DraftService interface {
	Save(testID, userID uint, answers []dto.AnswerDTO) error
	Get(testID, userID uint) ([]dto.AnswerDTO, error)
}

type draftService struct {
	draftRepo repository.DraftRepository
	testRepo  repository.TestRepository
	scheduler DeadlineScheduler
}

func NewDraftService(draftRepo repository.DraftRepository, testRepo repository.TestRepository, scheduler DeadlineScheduler) DraftService {
	return &draftService{draftRepo: draftRepo, testRepo: testRepo, scheduler: scheduler}
}

func (s *draftService) Save(testID, userID uint, answers []dto.AnswerDTO) error {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTestNotFound
		}
		return fmt.Errorf("loading test %d for draft: %w", testID, err)
	}

	if ClassifyWindow(time.Now(), test.StartAt, test.EndAt) != WindowActive {
		return ErrTestNotActive
	}
	s.scheduler.EnsureArmed(TimedTest{ID: test.ID, StartAt: test.StartAt, EndAt: test.EndAt, ClosedOut: test.ClosedOutAt != nil})

	draftAnswers := make([]model.DraftAnswer, len(answers))
	for i, a := range answers {
		draftAnswers[i] = model.DraftAnswer{QuestionID: a.QuestionID, OptionID: a.OptionID}
	}

	if err := s.draftRepo.Upsert(testID, userID, draftAnswers); err != nil {
		return fmt.Errorf("saving draft for test %d user %d: %w", testID, userID, err)
	}
	log.Debug().Uint("testID", testID).Uint("userID", userID).Int("answers", len(answers)).Msg("draft saved")
	return nil
}

func (s *draftService) Get(testID, userID uint) ([]dto.AnswerDTO, error) {
	draft, err := s.draftRepo.FindByTestAndUser(testID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []dto.AnswerDTO{}, nil
		}
		return nil, fmt.Errorf("loading draft for test %d user %d: %w", testID, userID, err)
	}

	answers := make([]dto.AnswerDTO, len(draft.Answers))
	for i, a := range draft.Answers {
		answers[i] = dto.AnswerDTO{QuestionID: a.QuestionID, OptionID: a.OptionID}
	}
	return answers, nil
}
