package stats

import (
	"time"

	"github.com/lmercadier/taskboard/internal/models"
)

// DashboardWindow is the rolling window the dashboard aggregates over.
const DashboardWindow = 30 * 24 * time.Hour

// ProjectStats are the per-project aggregates, recomputed from the current
// task set on each request.
type ProjectStats struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	InProgress   int `json:"inProgress"`
	Todo         int `json:"todo"`
	HighPriority int `json:"highPriority"`
}

// DashboardStats are the global aggregates over the rolling window.
type DashboardStats struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	InProgress   int `json:"inProgress"`
	Todo         int `json:"todo"`
	Overdue      int `json:"overdue"`
	DueToday     int `json:"dueToday"`
	HighPriority int `json:"highPriority"`
}

// Today formats now as the plain calendar date tasks carry, so due-date
// comparisons stay lexicographic.
func Today(now time.Time) string {
	return now.Format("2006-01-02")
}

// ComputeProject derives per-project statistics from its task set.
func ComputeProject(tasks []models.Task) ProjectStats {
	s := ProjectStats{Total: len(tasks)}
	for _, task := range tasks {
		switch task.Status {
		case models.TaskStatusDone:
			s.Completed++
		case models.TaskStatusInProgress:
			s.InProgress++
		case models.TaskStatusTodo:
			s.Todo++
		}
		if task.Priority == models.TaskPriorityHigh {
			s.HighPriority++
		}
	}
	return s
}

// ComputeDashboard derives the dashboard aggregates from the windowed task
// set. Overdue counts tasks due strictly before today and not done;
// dueToday counts tasks due exactly today; highPriority counts high
// priority tasks not done.
func ComputeDashboard(tasks []models.Task, today string) DashboardStats {
	s := DashboardStats{Total: len(tasks)}
	for _, task := range tasks {
		switch task.Status {
		case models.TaskStatusDone:
			s.Completed++
		case models.TaskStatusInProgress:
			s.InProgress++
		case models.TaskStatusTodo:
			s.Todo++
		}
		if task.DueDate != nil {
			if *task.DueDate < today && task.Status != models.TaskStatusDone {
				s.Overdue++
			}
			if *task.DueDate == today {
				s.DueToday++
			}
		}
		if task.Priority == models.TaskPriorityHigh && task.Status != models.TaskStatusDone {
			s.HighPriority++
		}
	}
	return s
}
