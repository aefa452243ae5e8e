package models

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an account that can own and join projects.
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string     `gorm:"size:255;not null" json:"-"`
	FullName  string     `gorm:"size:100;not null" json:"fullName"`
	Role      string     `gorm:"size:20;not null;default:USER" json:"role"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
