package service

import (
	"fmt"
	"sort"

	"github.com/ulugbekw/imtihon/internal/dto"
	"github.com/ulugbekw/imtihon/internal/model"
	"github.com/ulugbekw/imtihon/internal/repository"
)

// AggregationService computes read-only rollups over results. Results are
// append-only, so everything is recomputed on read; no materialized state.
type AggregationService interface {
	// StudentSubjectSeries is a student's score history within a subject,
	// most recent first, for trend display.
	StudentSubjectSeries(subjectID, userID uint) ([]dto.ScoreTrendEntryDTO, error)
	// SubjectAverage averages each of the subject's tests across everyone
	// who finished it. Zero finishers degenerate to an average of 0, not
	// an error.
	SubjectAverage(subjectID uint) (*dto.SubjectAverageDTO, error)
	// TeacherSubjectAverage is SubjectAverage scoped to tests the teacher
	// owns.
	TeacherSubjectAverage(subjectID, teacherID uint) (*dto.SubjectAverageDTO, error)
}

type aggregationService struct {
	resultRepo repository.ResultRepository
	testRepo   repository.TestRepository
}

func NewAggregationService(resultRepo repository.ResultRepository, testRepo repository.TestRepository) AggregationService {
	return &aggregationService{resultRepo: resultRepo, testRepo: testRepo}
}

func (s *aggregationService) StudentSubjectSeries(subjectID, userID uint) ([]dto.ScoreTrendEntryDTO, error) {
	results, err := s.resultRepo.FindFinishedBySubjectAndUser(subjectID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading results for subject %d user %d: %w", subjectID, userID, err)
	}

	series := make([]dto.ScoreTrendEntryDTO, len(results))
	for i, r := range results {
		series[i] = dto.ScoreTrendEntryDTO{
			TestID:     r.TestID,
			TestTitle:  r.Test.Title,
			Score:      r.Score,
			FinishedAt: r.FinishedAt,
		}
	}
	return series, nil
}

func (s *aggregationService) SubjectAverage(subjectID uint) (*dto.SubjectAverageDTO, error) {
	results, err := s.resultRepo.FindFinishedBySubject(subjectID)
	if err != nil {
		return nil, fmt.Errorf("loading results for subject %d: %w", subjectID, err)
	}
	tests, err := s.testRepo.FindBySubject(subjectID)
	if err != nil {
		return nil, fmt.Errorf("listing tests for subject %d: %w", subjectID, err)
	}
	return rollUp(subjectID, tests, results), nil
}

func (s *aggregationService) TeacherSubjectAverage(subjectID, teacherID uint) (*dto.SubjectAverageDTO, error) {
	results, err := s.resultRepo.FindFinishedBySubjectAndTeacher(subjectID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("loading results for subject %d teacher %d: %w", subjectID, teacherID, err)
	}
	allTests, err := s.testRepo.FindBySubject(subjectID)
	if err != nil {
		return nil, fmt.Errorf("listing tests for subject %d: %w", subjectID, err)
	}
	tests := make([]model.Test, 0, len(allTests))
	for _, t := range allTests {
		if t.TeacherID == teacherID {
			tests = append(tests, t)
		}
	}
	return rollUp(subjectID, tests, results), nil
}

func rollUp(subjectID uint, tests []model.Test, results []model.Result) *dto.SubjectAverageDTO {
	type bucket struct {
		sum   int
		count int
	}
	byTest := make(map[uint]*bucket, len(tests))
	titles := make(map[uint]string, len(tests))
	order := make([]uint, 0, len(tests))
	for _, t := range tests {
		byTest[t.ID] = &bucket{}
		titles[t.ID] = t.Title
		order = append(order, t.ID)
	}

	totalSum, totalCount := 0, 0
	for _, r := range results {
		b, ok := byTest[r.TestID]
		if !ok {
			continue
		}
		b.sum += r.Score
		b.count++
		totalSum += r.Score
		totalCount++
	}

	out := &dto.SubjectAverageDTO{SubjectID: subjectID, Tests: make([]dto.TestAverageDTO, 0, len(order))}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, testID := range order {
		b := byTest[testID]
		divisor := b.count
		if divisor == 0 {
			divisor = 1
		}
		out.Tests = append(out.Tests, dto.TestAverageDTO{
			TestID:        testID,
			TestTitle:     titles[testID],
			Average:       float64(b.sum) / float64(divisor),
			FinishedCount: b.count,
		})
	}

	divisor := totalCount
	if divisor == 0 {
		divisor = 1
	}
	out.Average = float64(totalSum) / float64(divisor)
	return out
}
