package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lmercadier/taskboard/internal/dto"
)

// CSV export: comma-separated, every field double-quote-enclosed, header
// row in the entity's canonical attribute order, one row per entity.
// encoding/csv quotes only when necessary, so quoting is written out here.

// TaskHeader is the canonical task attribute order.
var TaskHeader = []string{
	"id", "title", "description", "status", "priority",
	"project_id", "assignee_id", "due_date", "created_at", "updated_at",
}

// ProjectHeader is the canonical project attribute order.
var ProjectHeader = []string{
	"id", "name", "description", "status", "owner_id",
	"task_count", "created_at", "updated_at",
}

// TasksFilename returns the date-stamped export filename.
func TasksFilename(now time.Time) string {
	return "tasks_" + now.Format("2006-01-02") + ".csv"
}

// ProjectsFilename returns the date-stamped export filename.
func ProjectsFilename(now time.Time) string {
	return "projects_" + now.Format("2006-01-02") + ".csv"
}

// TasksCSV renders tasks as a CSV document.
func TasksCSV(tasks []dto.TaskDTO) string {
	var b strings.Builder
	writeRow(&b, TaskHeader)
	for _, t := range tasks {
		writeRow(&b, []string{
			t.ID,
			t.Title,
			t.Description,
			string(t.Status),
			string(t.Priority),
			t.ProjectID,
			stringOrEmpty(t.AssigneeID),
			stringOrEmpty(t.DueDate),
			t.CreatedAt.Format(time.RFC3339),
			t.UpdatedAt.Format(time.RFC3339),
		})
	}
	return b.String()
}

// ProjectsCSV renders projects as a CSV document.
func ProjectsCSV(projects []dto.ProjectDTO) string {
	var b strings.Builder
	writeRow(&b, ProjectHeader)
	for _, p := range projects {
		writeRow(&b, []string{
			p.ID,
			p.Name,
			p.Description,
			string(p.Status),
			p.OwnerID,
			fmt.Sprintf("%d", p.TaskCount),
			p.CreatedAt.Format(time.RFC3339),
			p.UpdatedAt.Format(time.RFC3339),
		})
	}
	return b.String()
}

func writeRow(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
