package dto

import "time"

// ScoreTrendEntryDTO is one point in a student's per-subject score series,
// ordered most recent first.
type ScoreTrendEntryDTO struct {
	TestID     uint      `json:"test_id"`
	TestTitle  string    `json:"test_title"`
	Score      int       `json:"score"`
	FinishedAt time.Time `json:"finished_at"`
}

// TestAverageDTO is the average score of one test across everyone who
// finished it.
type TestAverageDTO struct {
	TestID        uint    `json:"test_id"`
	TestTitle     string  `json:"test_title"`
	Average       float64 `json:"average"`
	FinishedCount int     `json:"finished_count"`
}

// SubjectAverageDTO rolls up a subject's tests.
type SubjectAverageDTO struct {
	SubjectID uint             `json:"subject_id"`
	Tests     []TestAverageDTO `json:"tests"`
	Average   float64          `json:"average"`
}
