package repository

import (
	"github.com/ulugbekw/imtihon/internal/model"
	"gorm.io/gorm"
)

type SubjectRepository interface {
	FindByID(id uint) (*model.Subject, error)
}

type subjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) FindByID(id uint) (*model.Subject, error) {
	var subject model.Subject
	err := r.db.Preload("Grade").First(&subject, id).Error
	return &subject, err
}
