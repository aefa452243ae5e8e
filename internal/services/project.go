package services

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db     *gorm.DB
	access *AccessService
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db, access: NewAccessService(db)}
}

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description"`
}

// UpdateProjectRequest fields are applied only when non-empty.
type UpdateProjectRequest struct {
	Name        string `json:"name" validate:"omitempty,min=2,max=100"`
	Description string `json:"description"`
}

type AddMemberRequest struct {
	UserID uint `json:"userId" validate:"required,gt=0"`
}

type UserSummary struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type MemberResponse struct {
	ID       uint      `json:"id"`
	UserID   uint      `json:"userId"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type ProjectResponse struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Owner       UserSummary      `json:"owner"`
	Members     []MemberResponse `json:"members"`
	MemberCount int              `json:"memberCount"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type ProjectListItem struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     uint      `json:"ownerId"`
	OwnerName   string    `json:"ownerName"`
	MemberCount int64     `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Create stores the project and the creator's OWNER membership in one
// transaction.
func (s *ProjectService) Create(userID uint, req *CreateProjectRequest) (*ProjectResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := Validate(req); err != nil {
		return nil, err
	}

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return response.NewNotFound("user not found")
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProjectMember{
			ProjectID: project.ID,
			UserID:    userID,
			Role:      models.MemberRoleOwner,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(s.db, &project)
}

// List returns every project userID is a member of, newest first.
func (s *ProjectService) List(userID uint) ([]ProjectListItem, error) {
	items := []ProjectListItem{}
	err := s.db.Table("projects p").
		Select(`p.id, p.name, p.description, p.owner_id, p.created_at,
			u.full_name AS owner_name,
			(SELECT COUNT(*) FROM project_members m WHERE m.project_id = p.id) AS member_count`).
		Joins("JOIN users u ON u.id = p.owner_id").
		Where("p.id IN (?)", s.db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", userID)).
		Order("p.created_at DESC, p.id DESC").
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ProjectService) GetByID(userID, projectID uint) (*ProjectResponse, error) {
	project, err := s.access.RequireMember(userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(s.db, project)
}

// Update applies the non-empty fields of req. Only the owner may update.
func (s *ProjectService) Update(userID, projectID uint, req *UpdateProjectRequest) (*ProjectResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := Validate(req); err != nil {
		return nil, err
	}

	project, err := s.access.RequireOwner(userID, projectID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}

	if len(updates) > 0 {
		if err := s.db.Model(project).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := s.db.First(project, project.ID).Error; err != nil {
			return nil, err
		}
	}

	return s.toResponse(s.db, project)
}

// Delete removes the project; memberships and tasks go with it through the
// cascading foreign keys.
func (s *ProjectService) Delete(userID, projectID uint) error {
	project, err := s.access.RequireOwner(userID, projectID)
	if err != nil {
		return err
	}

	result := s.db.Delete(project)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("project not found")
	}
	return nil
}

func (s *ProjectService) AddMember(userID, projectID uint, req *AddMemberRequest) (*MemberResponse, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.access.RequireOwner(userID, projectID); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}

	if s.access.CanAccessProject(req.UserID, projectID) {
		return nil, response.NewConflict("user is already a member of this project")
	}

	member := models.ProjectMember{
		ProjectID: projectID,
		UserID:    req.UserID,
		Role:      models.MemberRoleMember,
	}
	if err := s.db.Create(&member).Error; err != nil {
		// lost the race against a concurrent add
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, response.NewConflict("user is already a member of this project")
		}
		return nil, err
	}

	return &MemberResponse{
		ID:       member.ID,
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	}, nil
}

// RemoveMember deletes a membership. The owner's row is protected. Tasks in
// the project that were assigned to the removed user become unassigned.
func (s *ProjectService) RemoveMember(userID, projectID, memberUserID uint) error {
	project, err := s.access.RequireOwner(userID, projectID)
	if err != nil {
		return err
	}
	if memberUserID == project.OwnerID {
		return response.NewForbidden("the project owner cannot be removed")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("project_id = ? AND user_id = ?", projectID, memberUserID).
			Delete(&models.ProjectMember{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return response.NewNotFound("member not found in this project")
		}
		return tx.Model(&models.Task{}).
			Where("project_id = ? AND assignee_id = ?", projectID, memberUserID).
			Update("assignee_id", nil).Error
	})
}

func (s *ProjectService) ListMembers(userID, projectID uint) ([]MemberResponse, error) {
	if _, err := s.access.RequireMember(userID, projectID); err != nil {
		return nil, err
	}

	var members []MemberResponse
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		members, err = listMembers(tx, projectID)
		return err
	}, &sql.TxOptions{ReadOnly: true})
	return members, err
}

func listMembers(db *gorm.DB, projectID uint) ([]MemberResponse, error) {
	members := []MemberResponse{}
	err := db.Table("project_members m").
		Select("m.id, m.user_id, u.email, u.full_name, m.role, m.joined_at").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.project_id = ?", projectID).
		Order("m.joined_at ASC, m.id ASC").
		Scan(&members).Error
	return members, err
}

func (s *ProjectService) toResponse(db *gorm.DB, project *models.Project) (*ProjectResponse, error) {
	var owner models.User
	if err := db.First(&owner, project.OwnerID).Error; err != nil {
		return nil, err
	}
	members, err := listMembers(db, project.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Owner: UserSummary{
			ID:       owner.ID,
			Email:    owner.Email,
			FullName: owner.FullName,
		},
		Members:     members,
		MemberCount: len(members),
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}, nil
}
