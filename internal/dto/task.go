package dto

import (
	"time"

	"github.com/lmercadier/taskboard/internal/models"
)

// ProjectRef is the denormalized parent-project reference carried by task
// responses for display (id + name only).
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NormalizeProjectRef collapses the joined parent-project rows to a single
// nullable reference: first element or nil. The store returns the join as
// a singleton collection; every task read path goes through this, and
// re-normalizing an already-normalized value is a no-op.
func NormalizeProjectRef(refs []ProjectRef) *ProjectRef {
	if len(refs) == 0 {
		return nil
	}
	return &refs[0]
}

// TaskDTO represents a task in API responses. Create and update responses
// use the same shape as list and detail reads, so cache writes stay
// structurally consistent.
type TaskDTO struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	ProjectID   string              `json:"project_id"`
	AssigneeID  *string             `json:"assignee_id"`
	DueDate     *string             `json:"due_date"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Project     *ProjectRef         `json:"project"`
}

// TaskSummaryDTO represents a task inside a project detail response.
type TaskSummaryDTO struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Status     models.TaskStatus   `json:"status"`
	Priority   models.TaskPriority `json:"priority"`
	AssigneeID *string             `json:"assignee_id"`
	DueDate    *string             `json:"due_date"`
	CreatedAt  time.Time           `json:"created_at"`
}

// ToTaskDTO converts a Task model to TaskDTO, normalizing the parent
// project reference.
func ToTaskDTO(task models.Task) TaskDTO {
	var refs []ProjectRef
	if task.Project.ID != "" {
		refs = append(refs, ProjectRef{ID: task.Project.ID, Name: task.Project.Name})
	}

	return TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		ProjectID:   task.ProjectID,
		AssigneeID:  task.AssigneeID,
		DueDate:     task.DueDate,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		Project:     NormalizeProjectRef(refs),
	}
}

// ToTaskDTOs converts a slice of tasks.
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		dtos[i] = ToTaskDTO(task)
	}
	return dtos
}

// ToTaskSummaryDTO converts a Task model to its project-detail summary.
func ToTaskSummaryDTO(task models.Task) TaskSummaryDTO {
	return TaskSummaryDTO{
		ID:         task.ID,
		Title:      task.Title,
		Status:     task.Status,
		Priority:   task.Priority,
		AssigneeID: task.AssigneeID,
		DueDate:    task.DueDate,
		CreatedAt:  task.CreatedAt,
	}
}
