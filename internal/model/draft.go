package model

import (
	"time"
)

// Draft holds the answers a participant has recorded before final
// submission. It is mutable, scoped to (test, user), and consumed by the
// deadline close-out pass when the participant never submits explicitly.
// Deleted once the immutable Result is written.
type Draft struct {
	ID        uint          `gorm:"primarykey" json:"id"`
	TestID    uint          `json:"test_id" gorm:"not null;uniqueIndex:idx_drafts_test_user"`
	UserID    uint          `json:"user_id" gorm:"not null;uniqueIndex:idx_drafts_test_user"`
	Answers   []DraftAnswer `json:"answers,omitempty" gorm:"foreignKey:DraftID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type DraftAnswer struct {
	ID         uint `gorm:"primarykey" json:"id"`
	DraftID    uint `json:"draft_id" gorm:"not null;index"`
	QuestionID uint `json:"question_id" gorm:"not null"`
	OptionID   uint `json:"option_id" gorm:"not null"`
}
