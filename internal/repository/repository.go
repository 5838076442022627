package repository

import (
	"errors"
	"time"

	"github.com/lmercadier/taskboard/internal/models"
	"github.com/lmercadier/taskboard/internal/query"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the caller. Handlers map it to a distinct absent state, never a generic
// failure.
var ErrNotFound = errors.New("repository: not found")

// TaskRepository defines the entity-store boundary for tasks. Every read
// is scoped to the owner of the task's project; rows outside that scope
// behave as if they did not exist.
type TaskRepository interface {
	// Create inserts a new task; the store assigns identifier and timestamps.
	Create(task *models.Task) error

	// FindByID returns one task with its parent project preloaded.
	FindByID(ownerID, id string) (*models.Task, error)

	// List returns tasks matching the filter, most recently updated first.
	List(ownerID string, filter query.TaskFilter) ([]models.Task, error)

	// ListByProject returns the unfiltered task list of one project,
	// most recently created first.
	ListByProject(ownerID, projectID string) ([]models.Task, error)

	// ListCreatedSince returns tasks created at or after the given instant,
	// for the rolling dashboard window.
	ListCreatedSince(ownerID string, since time.Time) ([]models.Task, error)

	// Update persists changed fields and refreshes the updated timestamp.
	Update(task *models.Task) error

	// Delete removes a task independently of its project.
	Delete(id string) error
}

// ProjectRepository defines the entity-store boundary for projects.
type ProjectRepository interface {
	// Create inserts a new project owned by its OwnerID.
	Create(project *models.Project) error

	// FindByID returns one project with its task list preloaded.
	FindByID(ownerID, id string) (*models.Project, error)

	// List returns projects matching the filter with per-project task
	// counts, most recently updated first.
	List(ownerID string, filter query.ProjectFilter) ([]models.Project, []int64, error)

	// Update persists changed fields and refreshes the updated timestamp.
	Update(project *models.Project) error

	// Delete removes a project and cascades to its tasks atomically.
	Delete(id string) error
}

// UserRepository defines the entity-store boundary for users.
type UserRepository interface {
	Create(user *models.User) error
	FindByID(id string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
}
