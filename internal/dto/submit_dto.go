package dto

import "time"

// AnswerDTO is one (question, selected option) pair. Invalid references
// are dropped from scoring, never rejected wholesale.
type AnswerDTO struct {
	QuestionID uint `json:"question_id" binding:"required"`
	OptionID   uint `json:"option_id" binding:"required"`
}

// SubmitDTO is the request body for a final submission.
type SubmitDTO struct {
	Answers []AnswerDTO `json:"answers" binding:"dive"`
}

// DraftDTO is the request body for saving in-progress answers.
type DraftDTO struct {
	Answers []AnswerDTO `json:"answers" binding:"dive"`
}

type ResultAnswerDTO struct {
	QuestionID uint `json:"question_id"`
	OptionID   uint `json:"option_id"`
}

type ResultDTO struct {
	ID         uint              `json:"id"`
	TestID     uint              `json:"test_id"`
	UserID     uint              `json:"user_id"`
	Score      int               `json:"score"`
	Finished   bool              `json:"finished"`
	FinishedAt time.Time         `json:"finished_at"`
	Answers    []ResultAnswerDTO `json:"answers,omitempty"`
}

// SubmitResponseDTO wraps a result; AlreadyFinished is true when the
// participant had submitted before and the stored result is returned
// unchanged.
type SubmitResponseDTO struct {
	AlreadyFinished bool      `json:"already_finished"`
	Result          ResultDTO `json:"result"`
}

// TestResultRowDTO is one row in the teacher's results table for a test.
type TestResultRowDTO struct {
	UserID     uint      `json:"user_id"`
	Student    string    `json:"student"`
	Score      int       `json:"score"`
	Finished   bool      `json:"finished"`
	FinishedAt time.Time `json:"finished_at"`
}
