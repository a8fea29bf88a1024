package repository

import (
	"github.com/ulugbekw/imtihon/internal/model"
	"gorm.io/gorm"
)

type ResultRepository interface {
	// Create is a conditional insert: the unique index over
	// (test_id, user_id) makes the first writer win, and any later
	// writer gets gorm.ErrDuplicatedKey. Never preceded by a read.
	Create(result *model.Result) error
	FindByTestAndUser(testID, userID uint) (*model.Result, error)
	FindAllByTest(testID uint) ([]model.Result, error)
	ExistsForTest(testID uint) (bool, error)
	FindFinishedBySubjectAndUser(subjectID, userID uint) ([]model.Result, error)
	FindFinishedBySubject(subjectID uint) ([]model.Result, error)
	FindFinishedBySubjectAndTeacher(subjectID, teacherID uint) ([]model.Result, error)
}

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Create(result *model.Result) error {
	return r.db.Create(result).Error
}

func (r *resultRepository) FindByTestAndUser(testID, userID uint) (*model.Result, error) {
	var result model.Result
	err := r.db.Preload("Answers").
		Where("test_id = ? AND user_id = ?", testID, userID).
		First(&result).Error
	return &result, err
}

func (r *resultRepository) FindAllByTest(testID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.db.Preload("User").
		Where("test_id = ?", testID).
		Order("score DESC").
		Find(&results).Error
	return results, err
}

func (r *resultRepository) ExistsForTest(testID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.Result{}).Where("test_id = ?", testID).Count(&count).Error
	return count > 0, err
}

func (r *resultRepository) FindFinishedBySubjectAndUser(subjectID, userID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.db.Preload("Test").
		Joins("JOIN tests ON tests.id = results.test_id").
		Where("tests.subject_id = ? AND results.user_id = ? AND results.finished = ?", subjectID, userID, true).
		Order("results.finished_at DESC").
		Find(&results).Error
	return results, err
}

func (r *resultRepository) FindFinishedBySubject(subjectID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.db.Preload("Test").
		Joins("JOIN tests ON tests.id = results.test_id").
		Where("tests.subject_id = ? AND results.finished = ?", subjectID, true).
		Find(&results).Error
	return results, err
}

func (r *resultRepository) FindFinishedBySubjectAndTeacher(subjectID, teacherID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.db.Preload("Test").
		Joins("JOIN tests ON tests.id = results.test_id").
		Where("tests.subject_id = ? AND tests.teacher_id = ? AND results.finished = ?", subjectID, teacherID, true).
		Find(&results).Error
	return results, err
}
