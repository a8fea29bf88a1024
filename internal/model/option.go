package model

import (
	"time"

	"gorm.io/gorm"
)

// Option order matters for display only; grading looks at IsCorrect.
// Exactly one option per question is flagged correct, enforced at test
// creation time.
type Option struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	QuestionID uint           `json:"question_id" gorm:"not null;index"`
	Text       string         `json:"text" gorm:"not null"`
	OrderNum   int            `json:"order_num" gorm:"not null"`
	IsCorrect  bool           `json:"is_correct" gorm:"not null;default:false"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
