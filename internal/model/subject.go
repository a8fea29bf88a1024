package model

import (
	"time"

	"gorm.io/gorm"
)

type Subject struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Name      string         `json:"name" gorm:"not null"`
	GradeID   uint           `json:"grade_id" gorm:"not null;index"`
	Grade     Grade          `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
	TeacherID uint           `json:"teacher_id" gorm:"not null;index"`
	Tests     []Test         `json:"tests,omitempty" gorm:"foreignKey:SubjectID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
