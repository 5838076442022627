package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// ValidProjectStatus reports whether s is one of the closed project statuses.
func ValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

type Project struct {
	ID          string        `gorm:"type:varchar(36);primarykey" json:"id"`
	Name        string        `gorm:"type:varchar(100);not null" json:"name"`
	Description string        `gorm:"type:varchar(500)" json:"description"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	OwnerID     string        `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `gorm:"index" json:"updated_at"`

	// Relations
	Tasks []Task `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
	Owner User   `gorm:"foreignKey:OwnerID" json:"-"`
}

// BeforeCreate assigns the opaque identifier and the default status.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ProjectStatusActive
	}
	return nil
}
