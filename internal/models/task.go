package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// ValidTaskStatus reports whether s is one of the closed task statuses.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is one of the closed priorities.
func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task belongs to exactly one project. DueDate is a plain calendar date
// (YYYY-MM-DD, no time component), so comparisons stay lexicographic.
type Task struct {
	ID          string       `gorm:"type:varchar(36);primarykey" json:"id"`
	Title       string       `gorm:"type:varchar(200);not null" json:"title"`
	Description string       `gorm:"type:varchar(1000)" json:"description"`
	Status      TaskStatus   `gorm:"type:varchar(20);not null;default:'todo';index" json:"status"`
	Priority    TaskPriority `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	ProjectID   string       `gorm:"type:varchar(36);not null;index" json:"project_id"`
	AssigneeID  *string      `gorm:"type:varchar(36)" json:"assignee_id"`
	DueDate     *string      `gorm:"type:varchar(10);index" json:"due_date"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"index" json:"updated_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

// BeforeCreate assigns the opaque identifier and the enum defaults.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = TaskPriorityMedium
	}
	return nil
}
