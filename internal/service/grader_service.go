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

// SubmissionGrader finalizes exactly one result per participant per test.
// Both an explicit submit and the deadline close-out pass funnel through
// the same conditional insert, so whichever arrives second sees the stored
// result instead of overwriting it.
type SubmissionGrader interface {
	// Submit grades the answer set and persists the result. On a
	// duplicate it returns the stored result together with
	// ErrAlreadyFinished.
	Submit(testID, userID uint, answers []dto.AnswerDTO) (*dto.SubmitResponseDTO, error)
	// CloseOut finalizes every participant who has not yet submitted,
	// scoring whatever answers their draft last recorded. An empty draft
	// is a valid, fully scored outcome of 0.
	CloseOut(testID uint) error
}

type submissionGrader struct {
	testRepo   repository.TestRepository
	resultRepo repository.ResultRepository
	draftRepo  repository.DraftRepository
	presence   PresenceTracker
	grace      time.Duration
}

func NewSubmissionGrader(
	testRepo repository.TestRepository,
	resultRepo repository.ResultRepository,
	draftRepo repository.DraftRepository,
	presence PresenceTracker,
	grace time.Duration,
) SubmissionGrader {
	return &submissionGrader{
		testRepo:   testRepo,
		resultRepo: resultRepo,
		draftRepo:  draftRepo,
		presence:   presence,
		grace:      grace,
	}
}

func (s *submissionGrader) Submit(testID, userID uint, answers []dto.AnswerDTO) (*dto.SubmitResponseDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("loading test %d for submission: %w", testID, err)
	}

	now := time.Now()
	if now.Before(test.StartAt) {
		return nil, ErrTestNotActive
	}
	// In-flight submissions racing the deadline are accepted within the
	// grace window. Later arrivals from a participant the close-out pass
	// already finalized still get their stored result; everything else
	// is rejected.
	if !now.Before(test.EndAt.Add(s.grace)) {
		existing, findErr := s.resultRepo.FindByTestAndUser(testID, userID)
		if findErr == nil {
			return buildSubmitResponse(existing, true), ErrAlreadyFinished
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("loading existing result for test %d user %d: %w", testID, userID, findErr)
		}
		return nil, ErrWindowClosed
	}

	score, recorded := gradeAnswers(test, answers)
	result := model.Result{
		TestID:     testID,
		UserID:     userID,
		Score:      score,
		Finished:   true,
		FinishedAt: now,
		Answers:    recorded,
	}

	if err := s.resultRepo.Create(&result); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.resultRepo.FindByTestAndUser(testID, userID)
			if findErr != nil {
				return nil, fmt.Errorf("loading existing result for test %d user %d: %w", testID, userID, findErr)
			}
			log.Info().Uint("testID", testID).Uint("userID", userID).Msg("grader: duplicate submission, returning stored result")
			resp := buildSubmitResponse(existing, true)
			return resp, ErrAlreadyFinished
		}
		return nil, fmt.Errorf("persisting result for test %d user %d: %w", testID, userID, err)
	}

	log.Info().Uint("testID", testID).Uint("userID", userID).Int("score", score).Msg("grader: result recorded")

	// A finished participant is no longer live.
	s.presence.Leave(testID, userID)
	if err := s.draftRepo.DeleteByTestAndUser(testID, userID); err != nil {
		log.Warn().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("grader: failed to delete draft after finalization")
	}

	return buildSubmitResponse(&result, false), nil
}

func (s *submissionGrader) CloseOut(testID uint) error {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		return fmt.Errorf("loading test %d for close-out: %w", testID, err)
	}

	drafts, err := s.draftRepo.FindAllByTest(testID)
	if err != nil {
		return fmt.Errorf("loading drafts for test %d: %w", testID, err)
	}

	// Roster: everyone the engine heard from, draft owners plus anyone
	// still connected. A connected participant with no draft is scored
	// from an empty answer set.
	draftByUser := make(map[uint][]model.DraftAnswer, len(drafts))
	for _, d := range drafts {
		draftByUser[d.UserID] = d.Answers
	}
	roster := make(map[uint]bool, len(drafts))
	for userID := range draftByUser {
		roster[userID] = true
	}
	for _, userID := range s.presence.Members(testID) {
		roster[userID] = true
	}

	now := time.Now()
	var firstErr error
	finalized := 0
	for userID := range roster {
		answers := make([]dto.AnswerDTO, 0, len(draftByUser[userID]))
		for _, a := range draftByUser[userID] {
			answers = append(answers, dto.AnswerDTO{QuestionID: a.QuestionID, OptionID: a.OptionID})
		}

		score, recorded := gradeAnswers(test, answers)
		result := model.Result{
			TestID:     testID,
			UserID:     userID,
			Score:      score,
			Finished:   true,
			FinishedAt: now,
			Answers:    recorded,
		}

		if err := s.resultRepo.Create(&result); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the race to a manual submit; their result stands.
				continue
			}
			log.Error().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("grader: close-out failed to persist result")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		finalized++
		s.presence.Leave(testID, userID)
		if err := s.draftRepo.DeleteByTestAndUser(testID, userID); err != nil {
			log.Warn().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("grader: failed to delete draft after close-out")
		}
	}

	log.Info().Uint("testID", testID).Int("finalized", finalized).Int("roster", len(roster)).Msg("grader: close-out pass complete")
	if firstErr != nil {
		return fmt.Errorf("close-out for test %d left unfinalized participants: %w", testID, firstErr)
	}
	return nil
}

// gradeAnswers scores an answer set against the test's questions. Answers
// referencing questions outside the test, or options outside their
// question, are dropped from scoring; the valid remainder still counts.
// Unanswered questions count as incorrect, never as excluded from the
// denominator. score = floor(100 * correct / total).
func gradeAnswers(test *model.Test, answers []dto.AnswerDTO) (int, []model.ResultAnswer) {
	type questionInfo struct {
		correctOptionID uint
		optionIDs       map[uint]bool
	}
	questions := make(map[uint]questionInfo, len(test.Questions))
	for _, q := range test.Questions {
		info := questionInfo{optionIDs: make(map[uint]bool, len(q.Options))}
		for _, opt := range q.Options {
			info.optionIDs[opt.ID] = true
			if opt.IsCorrect {
				info.correctOptionID = opt.ID
			}
		}
		questions[q.ID] = info
	}

	// Last valid answer per question wins.
	selected := make(map[uint]uint, len(answers))
	for _, a := range answers {
		info, ok := questions[a.QuestionID]
		if !ok {
			log.Warn().Uint("testID", test.ID).Uint("questionID", a.QuestionID).Msg("grader: answer references question outside test, dropped")
			continue
		}
		if !info.optionIDs[a.OptionID] {
			log.Warn().Uint("testID", test.ID).Uint("questionID", a.QuestionID).Uint("optionID", a.OptionID).Msg("grader: answer references option outside question, dropped")
			continue
		}
		selected[a.QuestionID] = a.OptionID
	}

	correct := 0
	recorded := make([]model.ResultAnswer, 0, len(selected))
	for questionID, optionID := range selected {
		recorded = append(recorded, model.ResultAnswer{QuestionID: questionID, OptionID: optionID})
		if questions[questionID].correctOptionID == optionID {
			correct++
		}
	}

	total := len(test.Questions)
	if total == 0 {
		return 0, recorded
	}
	return 100 * correct / total, recorded
}

func buildSubmitResponse(result *model.Result, alreadyFinished bool) *dto.SubmitResponseDTO {
	resp := dto.SubmitResponseDTO{
		AlreadyFinished: alreadyFinished,
		Result: dto.ResultDTO{
			ID:         result.ID,
			TestID:     result.TestID,
			UserID:     result.UserID,
			Score:      result.Score,
			Finished:   result.Finished,
			FinishedAt: result.FinishedAt,
		},
	}
	for _, a := range result.Answers {
		resp.Result.Answers = append(resp.Result.Answers, dto.ResultAnswerDTO{QuestionID: a.QuestionID, OptionID: a.OptionID})
	}
	return &resp
}
