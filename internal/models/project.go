package models

import "time"

// Project groups tasks. The owner always holds an OWNER membership row.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	OwnerID     uint      `gorm:"index;not null" json:"ownerId"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Project) TableName() string { return "projects" }
