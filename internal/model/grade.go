package model

import (
	"time"

	"gorm.io/gorm"
)

type Grade struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Name      string         `json:"name" gorm:"not null;uniqueIndex"` // "9-A"
	Students  []User         `json:"students,omitempty" gorm:"foreignKey:GradeID"`
	Subjects  []Subject      `json:"subjects,omitempty" gorm:"foreignKey:GradeID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
