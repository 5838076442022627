package dto

import (
	"time"

	"github.com/lmercadier/taskboard/internal/models"
)

type tasksViewKind int

const (
	tasksViewCountOnly tasksViewKind = iota
	tasksViewFullList
)

// ProjectTasksView is the tagged variant of a project's embedded tasks:
// either the full task list (detail queries) or a bare count (list
// queries). It always resolves to a plain integer at the read boundary.
type ProjectTasksView struct {
	kind  tasksViewKind
	tasks []TaskSummaryDTO
	count int
}

// FullTaskList builds the variant carrying the complete task list.
func FullTaskList(tasks []TaskSummaryDTO) ProjectTasksView {
	return ProjectTasksView{kind: tasksViewFullList, tasks: tasks, count: len(tasks)}
}

// TaskCountOnly builds the variant carrying only an aggregate count.
func TaskCountOnly(count int) ProjectTasksView {
	return ProjectTasksView{kind: tasksViewCountOnly, count: count}
}

// Count returns the task count regardless of which variant is held.
func (v ProjectTasksView) Count() int {
	return v.count
}

// Tasks returns the embedded list and whether the view carries one.
func (v ProjectTasksView) Tasks() ([]TaskSummaryDTO, bool) {
	if v.kind != tasksViewFullList {
		return nil, false
	}
	return v.tasks, true
}

// ProjectDTO represents a project in API responses. TaskCount is always
// populated; Tasks only when the query embedded the full list.
type ProjectDTO struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status"`
	OwnerID     string               `json:"owner_id"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	TaskCount   int                  `json:"task_count"`
	Tasks       []TaskSummaryDTO     `json:"tasks,omitempty"`
}

// ToProjectDTO converts a Project model to ProjectDTO with the given
// embedded-tasks view.
func ToProjectDTO(project models.Project, view ProjectTasksView) ProjectDTO {
	dto := ProjectDTO{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		OwnerID:     project.OwnerID,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
		TaskCount:   view.Count(),
	}

	if tasks, ok := view.Tasks(); ok {
		dto.Tasks = tasks
	}

	return dto
}

// ToProjectDetailDTO converts a project with its preloaded task list.
func ToProjectDetailDTO(project models.Project) ProjectDTO {
	summaries := make([]TaskSummaryDTO, len(project.Tasks))
	for i, task := range project.Tasks {
		summaries[i] = ToTaskSummaryDTO(task)
	}
	return ToProjectDTO(project, FullTaskList(summaries))
}
