package model

import (
	"time"

	"gorm.io/gorm"
)

// Test is one scheduled test instance with a fixed time window. Its
// lifecycle state (upcoming, active, expired) is always derived from the
// window against the server clock, never stored. A test becomes immutable
// once any Result exists for it.
type Test struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	Title     string     `json:"title" gorm:"not null"`
	SubjectID uint       `json:"subject_id" gorm:"not null;index"`
	Subject   Subject    `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	TeacherID uint       `json:"teacher_id" gorm:"not null;index"`
	StartAt   time.Time  `json:"start_at" gorm:"not null"`
	EndAt     time.Time  `json:"end_at" gorm:"not null"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TestID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	// ClosedOutAt records that the deadline close-out pass ran for this
	// test. A fired deadline is never re-armed; after a restart, tests
	// whose EndAt has passed with ClosedOutAt still null are closed out
	// immediately.
	ClosedOutAt *time.Time `json:"closed_out_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
