package repository

import (
	"time"

	"github.com/ulugbekw/imtihon/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(test *model.Test) error
	FindByID(id uint) (*model.Test, error)
	FindByIDWithQuestions(id uint) (*model.Test, error)
	FindBySubject(subjectID uint) ([]model.Test, error)
	Delete(id uint) error
	MarkClosedOut(id uint, at time.Time) error
	FindExpiredUnclosed(now time.Time) ([]model.Test, error)
	FindActiveUnclosed(now time.Time) ([]model.Test, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(test *model.Test) error {
	// GORM creates the associated questions and options in one pass.
	return r.db.Create(test).Error
}

func (r *testRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.First(&test, id).Error
	return &test, err
}

func (r *testRepository) FindByIDWithQuestions(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_num ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.order_num ASC")
		}).
		First(&test, id).Error
	return &test, err
}

func (r *testRepository) FindBySubject(subjectID uint) ([]model.Test, error) {
	var tests []model.Test
	err := r.db.Where("subject_id = ?", subjectID).Order("start_at DESC").Find(&tests).Error
	return tests, err
}

func (r *testRepository) Delete(id uint) error {
	return r.db.Delete(&model.Test{}, id).Error
}

func (r *testRepository) MarkClosedOut(id uint, at time.Time) error {
	return r.db.Model(&model.Test{}).Where("id = ?", id).Update("closed_out_at", at).Error
}

// FindExpiredUnclosed returns tests whose window has ended but which never
// ran a close-out pass. Used on startup to recover deadlines lost to a
// restart.
func (r *testRepository) FindExpiredUnclosed(now time.Time) ([]model.Test, error) {
	var tests []model.Test
	err := r.db.Where("end_at <= ? AND closed_out_at IS NULL", now).Find(&tests).Error
	return tests, err
}

// FindActiveUnclosed returns tests currently inside their window, so the
// scheduler can re-arm their deadlines after a restart.
func (r *testRepository) FindActiveUnclosed(now time.Time) ([]model.Test, error) {
	var tests []model.Test
	err := r.db.Where("start_at <= ? AND end_at > ? AND closed_out_at IS NULL", now, now).Find(&tests).Error
	return tests, err
}
