package service

import (
	"errors"
	"fmt"

	"github.com/ulugbekw/imtihon/internal/model"
	"github.com/ulugbekw/imtihon/internal/repository"
	"gorm.io/gorm"
)

// Authorizer is the capability check the engine consults. Identity itself
// comes from the upstream auth layer; this only answers whether a known
// user may act on a test.
type Authorizer interface {
	// CanSubmit: students of the grade the test's subject belongs to.
	CanSubmit(userID, testID uint) (bool, error)
	// CanObserve: the owning teacher, or any admin.
	CanObserve(userID, testID uint) (bool, error)
}

type authorizer struct {
	userRepo    repository.UserRepository
	testRepo    repository.TestRepository
	subjectRepo repository.SubjectRepository
}

func NewAuthorizer(userRepo repository.UserRepository, testRepo repository.TestRepository, subjectRepo repository.SubjectRepository) Authorizer {
	return &authorizer{userRepo: userRepo, testRepo: testRepo, subjectRepo: subjectRepo}
}

func (a *authorizer) CanSubmit(userID, testID uint) (bool, error) {
	user, subject, err := a.load(userID, testID)
	if err != nil {
		return false, err
	}
	if user.Role != model.RoleStudent || user.GradeID == nil {
		return false, nil
	}
	return *user.GradeID == subject.GradeID, nil
}

func (a *authorizer) CanObserve(userID, testID uint) (bool, error) {
	user, subject, err := a.load(userID, testID)
	if err != nil {
		return false, err
	}
	switch user.Role {
	case model.RoleAdmin:
		return true, nil
	case model.RoleTeacher:
		return subject.TeacherID == userID, nil
	}
	return false, nil
}

func (a *authorizer) load(userID, testID uint) (*model.User, *model.Subject, error) {
	user, err := a.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrForbidden
		}
		return nil, nil, fmt.Errorf("loading user %d: %w", userID, err)
	}
	test, err := a.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTestNotFound
		}
		return nil, nil, fmt.Errorf("loading test %d: %w", testID, err)
	}
	subject, err := a.subjectRepo.FindByID(test.SubjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading subject %d: %w", test.SubjectID, err)
	}
	return user, subject, nil
}
