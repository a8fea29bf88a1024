package model

import (
	"time"
)

// Result is the terminal record of one participant's attempt at one test.
// It is created exactly once and never updated: the unique index over
// (test_id, user_id) is the idempotency guard that resolves the race
// between a manual submission and the deadline close-out pass. No soft
// delete; results are facts.
type Result struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	TestID     uint           `json:"test_id" gorm:"not null;uniqueIndex:idx_results_test_user"`
	Test       Test           `json:"test,omitempty" gorm:"foreignKey:TestID"`
	UserID     uint           `json:"user_id" gorm:"not null;uniqueIndex:idx_results_test_user"`
	User       User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Score      int            `json:"score" gorm:"not null"` // 0..100
	Finished   bool           `json:"finished" gorm:"not null"`
	FinishedAt time.Time      `json:"finished_at" gorm:"not null"`
	Answers    []ResultAnswer `json:"answers,omitempty" gorm:"foreignKey:ResultID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ResultAnswer is one (question, selected option) pair frozen at
// finalization time.
type ResultAnswer struct {
	ID         uint `gorm:"primarykey" json:"id"`
	ResultID   uint `json:"result_id" gorm:"not null;index"`
	QuestionID uint `json:"question_id" gorm:"not null"`
	OptionID   uint `json:"option_id" gorm:"not null"`
}
