package model

import (
	"time"

	"gorm.io/gorm"
)

// Question text is an opaque blob to the engine; rendering (formulas,
// images) happens elsewhere.
type Question struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	TestID    uint           `json:"test_id" gorm:"not null;index"`
	Text      string         `json:"text" gorm:"type:text;not null"`
	OrderNum  int            `json:"order_num" gorm:"not null"`
	Options   []Option       `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CorrectOptionID returns the id of the option flagged correct, or 0 if
// options are not loaded.
func (q *Question) CorrectOptionID() uint {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt.ID
		}
	}
	return 0
}
