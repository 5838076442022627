package export

import (
	"strings"
	"testing"
	"time"

	"github.com/lmercadier/taskboard/internal/dto"
	"github.com/lmercadier/taskboard/internal/models"
	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string {
	return &s
}

func TestTasksFilename(t *testing.T) {
	now := time.Date(2025, 3, 7, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "tasks_2025-03-07.csv", TasksFilename(now))
	assert.Equal(t, "projects_2025-03-07.csv", ProjectsFilename(now))
}

func TestTasksCSV_HeaderOnly(t *testing.T) {
	out := TasksCSV(nil)

	assert.Equal(t, `"id","title","description","status","priority","project_id","assignee_id","due_date","created_at","updated_at"`+"\n", out)
}

func TestTasksCSV_EveryFieldQuoted(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	tasks := []dto.TaskDTO{
		{
			ID:          "t1",
			Title:       "Write report",
			Description: "quarterly numbers",
			Status:      models.TaskStatusTodo,
			Priority:    models.TaskPriorityHigh,
			ProjectID:   "p1",
			AssigneeID:  strptr("u2"),
			DueDate:     strptr("2025-03-15"),
			CreatedAt:   created,
			UpdatedAt:   created,
		},
	}

	out := TasksCSV(tasks)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Len(t, lines, 2)
	assert.Equal(t, `"t1","Write report","quarterly numbers","todo","high","p1","u2","2025-03-15","2025-03-01T09:00:00Z","2025-03-01T09:00:00Z"`, lines[1])
}

func TestTasksCSV_QuoteAndCommaEscaping(t *testing.T) {
	tasks := []dto.TaskDTO{
		{
			ID:    "t1",
			Title: `say "hello", world`,
		},
	}

	out := TasksCSV(tasks)

	// Embedded quotes double; commas survive inside the quoted field.
	assert.Contains(t, out, `"say ""hello"", world"`)
}

func TestTasksCSV_NilOptionalsRenderEmpty(t *testing.T) {
	tasks := []dto.TaskDTO{{ID: "t1", Title: "Bare"}}

	out := TasksCSV(tasks)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	fields := strings.Split(lines[1], ",")

	// assignee_id and due_date columns are empty quoted strings.
	assert.Equal(t, `""`, fields[6])
	assert.Equal(t, `""`, fields[7])
}

func TestProjectsCSV(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	projects := []dto.ProjectDTO{
		{
			ID:          "p1",
			Name:        "Quarterly",
			Description: "reports",
			Status:      models.ProjectStatusActive,
			OwnerID:     "u1",
			TaskCount:   4,
			CreatedAt:   created,
			UpdatedAt:   created,
		},
	}

	out := ProjectsCSV(projects)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Equal(t, `"id","name","description","status","owner_id","task_count","created_at","updated_at"`, lines[0])
	assert.Equal(t, `"p1","Quarterly","reports","active","u1","4","2025-03-01T09:00:00Z","2025-03-01T09:00:00Z"`, lines[1])
}
