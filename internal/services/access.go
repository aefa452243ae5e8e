package services

import (
	"errors"

	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/pkg/logger"
	"github.com/huangang/taskflow/pkg/response"
	"gorm.io/gorm"
)

// AccessService answers the membership and ownership questions every
// project scoped operation starts with.
type AccessService struct {
	db *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// WithTx returns a copy bound to tx.
func (s *AccessService) WithTx(tx *gorm.DB) *AccessService {
	return &AccessService{db: tx}
}

func (s *AccessService) isMember(projectID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *AccessService) hasAnyMembership(userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.ProjectMember{}).Where("user_id = ?", userID).Count(&count).Error
	return count > 0, err
}

// CanAccessProject reports whether userID holds a membership row in the project.
func (s *AccessService) CanAccessProject(userID, projectID uint) bool {
	ok, err := s.isMember(projectID, userID)
	if err != nil {
		logger.Error().Err(err).Uint("project_id", projectID).Uint("user_id", userID).Msg("membership lookup failed")
		return false
	}
	return ok
}

// CanMutateProject reports whether userID owns the project.
func (s *AccessService) CanMutateProject(userID uint, project *models.Project) bool {
	return project != nil && project.OwnerID == userID
}

// CanAssign reports whether candidateID may be assigned tasks in the project.
func (s *AccessService) CanAssign(projectID, candidateID uint) bool {
	return s.CanAccessProject(candidateID, projectID)
}

// CanViewUserStats allows self, or any two users that each belong to at
// least one project. The two memberships do not have to be in the same
// project.
func (s *AccessService) CanViewUserStats(requesterID, targetID uint) (bool, error) {
	if requesterID == targetID {
		return true, nil
	}
	ok, err := s.hasAnyMembership(requesterID)
	if err != nil || !ok {
		return false, err
	}
	return s.hasAnyMembership(targetID)
}

// ProjectIDs lists the ids of projects userID is a member of.
func (s *AccessService) ProjectIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.ProjectMember{}).
		Where("user_id = ?", userID).
		Order("project_id").
		Pluck("project_id", &ids).Error
	return ids, err
}

// LoadProject fetches a project or returns NOT_FOUND.
func (s *AccessService) LoadProject(projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}
	return &project, nil
}

// RequireMember loads the project and fails with FORBIDDEN unless userID is
// a member.
func (s *AccessService) RequireMember(userID, projectID uint) (*models.Project, error) {
	project, err := s.LoadProject(projectID)
	if err != nil {
		return nil, err
	}
	ok, err := s.isMember(projectID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, response.NewForbidden("you are not a member of this project")
	}
	return project, nil
}

// RequireOwner loads the project and fails with FORBIDDEN unless userID owns it.
func (s *AccessService) RequireOwner(userID, projectID uint) (*models.Project, error) {
	project, err := s.LoadProject(projectID)
	if err != nil {
		return nil, err
	}
	if !s.CanMutateProject(userID, project) {
		return nil, response.NewForbidden("only the project owner can perform this action")
	}
	return project, nil
}

// RequireAssignable fails with NOT_FOUND for an unknown user and FORBIDDEN
// when the user is not a member of the project.
func (s *AccessService) RequireAssignable(projectID, assigneeID uint) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", assigneeID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return response.NewNotFound("assignee not found")
	}
	ok, err := s.isMember(projectID, assigneeID)
	if err != nil {
		return err
	}
	if !ok {
		return response.NewForbidden("assignee is not a member of this project")
	}
	return nil
}
