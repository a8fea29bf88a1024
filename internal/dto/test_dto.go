package dto

import "time"

// --- Teacher authoring DTOs ---

// OptionCreateDTO is used within QuestionCreateDTO when a teacher authors a test.
type OptionCreateDTO struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionCreateDTO struct {
	Text    string            `json:"text" binding:"required"`
	Options []OptionCreateDTO `json:"options" binding:"required,min=2,dive"`
}

// TestCreateDTO is for a teacher to schedule a new test with all its
// questions. The window invariant (start before end) and the one-correct-
// option-per-question invariant are validated by the service.
type TestCreateDTO struct {
	Title     string              `json:"title" binding:"required"`
	SubjectID uint                `json:"subject_id" binding:"required"`
	StartAt   time.Time           `json:"start_at" binding:"required"`
	EndAt     time.Time           `json:"end_at" binding:"required"`
	Questions []QuestionCreateDTO `json:"questions" binding:"required,min=1,dive"`
}

// --- Read DTOs ---

type OptionResponseDTO struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	OrderNum int    `json:"order_num"`
	// IsCorrect is only populated for observers; it is stripped from
	// student-facing responses.
	IsCorrect *bool `json:"is_correct,omitempty"`
}

type QuestionResponseDTO struct {
	ID       uint                `json:"id"`
	TestID   uint                `json:"test_id"`
	Text     string              `json:"text"`
	OrderNum int                 `json:"order_num"`
	Options  []OptionResponseDTO `json:"options,omitempty"`
}

// TestResponseDTO is the full test view. Window is the server-side
// classification at response time; any client countdown is advisory and
// must be reconciled against it.
type TestResponseDTO struct {
	ID        uint                  `json:"id"`
	Title     string                `json:"title"`
	SubjectID uint                  `json:"subject_id"`
	StartAt   time.Time             `json:"start_at"`
	EndAt     time.Time             `json:"end_at"`
	Window    string                `json:"window"` // UPCOMING, ACTIVE, EXPIRED
	Questions []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// TestSummaryDTO is used when listing a subject's tests to a student,
// including whether that student already finished it.
type TestSummaryDTO struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Window    string    `json:"window"`
	Finished  bool      `json:"finished"`
	Score     *int      `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
