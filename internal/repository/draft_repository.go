package repository

import (
	"errors"

	"github.com/ulugbekw/imtihon/internal/model"
	"gorm.io/gorm"
)

type DraftRepository interface {
	// Upsert replaces the whole answer set for (testID, userID).
	Upsert(testID, userID uint, answers []model.DraftAnswer) error
	FindByTestAndUser(testID, userID uint) (*model.Draft, error)
	FindAllByTest(testID uint) ([]model.Draft, error)
	DeleteByTestAndUser(testID, userID uint) error
}

type draftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Upsert(testID, userID uint, answers []model.DraftAnswer) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var draft model.Draft
		err := tx.Where("test_id = ? AND user_id = ?", testID, userID).First(&draft).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			draft = model.Draft{TestID: testID, UserID: userID}
			if err := tx.Create(&draft).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Where("draft_id = ?", draft.ID).Delete(&model.DraftAnswer{}).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].DraftID = draft.ID
		}
		if len(answers) == 0 {
			return nil
		}
		return tx.Create(&answers).Error
	})
}

func (r *draftRepository) FindByTestAndUser(testID, userID uint) (*model.Draft, error) {
	var draft model.Draft
	err := r.db.Preload("Answers").
		Where("test_id = ? AND user_id = ?", testID, userID).
		First(&draft).Error
	return &draft, err
}

func (r *draftRepository) FindAllByTest(testID uint) ([]model.Draft, error) {
	var drafts []model.Draft
	err := r.db.Preload("Answers").Where("test_id = ?", testID).Find(&drafts).Error
	return drafts, err
}

func (r *draftRepository) DeleteByTestAndUser(testID, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var draft model.Draft
		err := tx.Where("test_id = ? AND user_id = ?", testID, userID).First(&draft).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		if err := tx.Where("draft_id = ?", draft.ID).Delete(&model.DraftAnswer{}).Error; err != nil {
			return err
		}
		return tx.Delete(&draft).Error
	})
}
