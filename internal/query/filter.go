package query

import (
	"sort"
	"strings"

	"github.com/lmercadier/taskboard/internal/models"
	"gorm.io/gorm"
)

// TaskFilter narrows a task query. Every field is optional; provided
// fields combine with AND semantics, absent fields impose no constraint.
type TaskFilter struct {
	Status     []models.TaskStatus
	Priority   []models.TaskPriority
	ProjectID  string
	AssigneeID string
	Search     string
	DateFrom   string
	DateTo     string
}

// IsZero reports whether the filter restricts nothing.
func (f TaskFilter) IsZero() bool {
	return len(f.Status) == 0 && len(f.Priority) == 0 && f.ProjectID == "" &&
		f.AssigneeID == "" && f.Search == "" && f.DateFrom == "" && f.DateTo == ""
}

// Apply translates the filter into a conjunction of predicates on db.
// Search matches title or description case-insensitively as a substring.
func (f TaskFilter) Apply(db *gorm.DB) *gorm.DB {
	if f.ProjectID != "" {
		db = db.Where("tasks.project_id = ?", f.ProjectID)
	}
	if len(f.Status) > 0 {
		db = db.Where("tasks.status IN ?", f.Status)
	}
	if len(f.Priority) > 0 {
		db = db.Where("tasks.priority IN ?", f.Priority)
	}
	if f.AssigneeID != "" {
		db = db.Where("tasks.assignee_id = ?", f.AssigneeID)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		db = db.Where("LOWER(tasks.title) LIKE ? OR LOWER(tasks.description) LIKE ?", pattern, pattern)
	}
	if f.DateFrom != "" {
		db = db.Where("tasks.due_date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		db = db.Where("tasks.due_date <= ?", f.DateTo)
	}
	return db
}

// Signature returns the canonical serialization of the filter, used as a
// cache-key suffix. Equal filters always produce equal signatures; set
// fields are sorted so element order cannot split the cache.
func (f TaskFilter) Signature() string {
	if f.IsZero() {
		return "all"
	}

	parts := make([]string, 0, 7)
	if len(f.Status) > 0 {
		parts = append(parts, "status="+joinSorted(statusStrings(f.Status)))
	}
	if len(f.Priority) > 0 {
		parts = append(parts, "priority="+joinSorted(priorityStrings(f.Priority)))
	}
	if f.ProjectID != "" {
		parts = append(parts, "project="+f.ProjectID)
	}
	if f.AssigneeID != "" {
		parts = append(parts, "assignee="+f.AssigneeID)
	}
	if f.Search != "" {
		parts = append(parts, "search="+strings.ToLower(f.Search))
	}
	if f.DateFrom != "" {
		parts = append(parts, "from="+f.DateFrom)
	}
	if f.DateTo != "" {
		parts = append(parts, "to="+f.DateTo)
	}
	return strings.Join(parts, "&")
}

// ProjectFilter narrows a project query; same conjunction semantics as
// TaskFilter. The date range bounds apply to the creation timestamp.
type ProjectFilter struct {
	Status      []models.ProjectStatus
	Search      string
	OwnerID     string
	CreatedFrom string
	CreatedTo   string
}

func (f ProjectFilter) IsZero() bool {
	return len(f.Status) == 0 && f.Search == "" && f.OwnerID == "" &&
		f.CreatedFrom == "" && f.CreatedTo == ""
}

func (f ProjectFilter) Apply(db *gorm.DB) *gorm.DB {
	if len(f.Status) > 0 {
		db = db.Where("projects.status IN ?", f.Status)
	}
	if f.OwnerID != "" {
		db = db.Where("projects.owner_id = ?", f.OwnerID)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		db = db.Where("LOWER(projects.name) LIKE ? OR LOWER(projects.description) LIKE ?", pattern, pattern)
	}
	if f.CreatedFrom != "" {
		db = db.Where("projects.created_at >= ?", f.CreatedFrom)
	}
	if f.CreatedTo != "" {
		db = db.Where("projects.created_at <= ?", f.CreatedTo)
	}
	return db
}

func (f ProjectFilter) Signature() string {
	if f.IsZero() {
		return "all"
	}

	parts := make([]string, 0, 5)
	if len(f.Status) > 0 {
		ss := make([]string, len(f.Status))
		for i, s := range f.Status {
			ss[i] = string(s)
		}
		parts = append(parts, "status="+joinSorted(ss))
	}
	if f.OwnerID != "" {
		parts = append(parts, "owner="+f.OwnerID)
	}
	if f.Search != "" {
		parts = append(parts, "search="+strings.ToLower(f.Search))
	}
	if f.CreatedFrom != "" {
		parts = append(parts, "from="+f.CreatedFrom)
	}
	if f.CreatedTo != "" {
		parts = append(parts, "to="+f.CreatedTo)
	}
	return strings.Join(parts, "&")
}

func joinSorted(values []string) string {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func statusStrings(values []models.TaskStatus) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func priorityStrings(values []models.TaskPriority) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
