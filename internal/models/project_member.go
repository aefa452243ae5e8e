package models

import "time"

const (
	MemberRoleOwner  = "OWNER"
	MemberRoleMember = "MEMBER"
)

// ProjectMember links a user to a project. Rows are removed together with
// their project through the foreign key.
type ProjectMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_project_user;not null" json:"projectId"`
	Project   *Project  `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_project_user;index;not null" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Role      string    `gorm:"size:20;not null;default:MEMBER" json:"role"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (ProjectMember) TableName() string { return "project_members" }
