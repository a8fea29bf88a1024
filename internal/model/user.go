package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleStudent = "STUDENT"
	RoleTeacher = "TEACHER"
	RoleAdmin   = "ADMIN"
)

type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Name      string         `json:"name" gorm:"not null"`
	Username  string         `json:"username" gorm:"not null;uniqueIndex"`
	Role      string         `json:"role" gorm:"not null"` // STUDENT, TEACHER, ADMIN
	GradeID   *uint          `json:"grade_id,omitempty" gorm:"index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
