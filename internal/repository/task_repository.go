package repository

import (
	"errors"
	"time"

	"github.com/lmercadier/taskboard/internal/models"
	"github.com/lmercadier/taskboard/internal/query"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// ownerScope restricts task rows to projects owned by ownerID. This is the
// row-level visibility the original delegated to the backend's policies.
func (r *GormTaskRepository) ownerScope(ownerID string) *gorm.DB {
	return r.db.Model(&models.Task{}).
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("projects.owner_id = ?", ownerID)
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with its parent project preloaded
func (r *GormTaskRepository) FindByID(ownerID, id string) (*models.Task, error) {
	var task models.Task
	err := r.ownerScope(ownerID).
		Preload("Project").
		Where("tasks.id = ?", id).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks matching the filter, most recently updated first
func (r *GormTaskRepository) List(ownerID string, filter query.TaskFilter) ([]models.Task, error) {
	var tasks []models.Task
	err := filter.Apply(r.ownerScope(ownerID)).
		Preload("Project").
		Order("tasks.updated_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListByProject retrieves the unfiltered task list of one project,
// most recently created first
func (r *GormTaskRepository) ListByProject(ownerID, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	err := r.ownerScope(ownerID).
		Where("tasks.project_id = ?", projectID).
		Order("tasks.created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListCreatedSince retrieves tasks created at or after the given instant
func (r *GormTaskRepository) ListCreatedSince(ownerID string, since time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.ownerScope(ownerID).
		Where("tasks.created_at >= ?", since).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update updates a task
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Omit(clause.Associations).Save(task).Error
}

// Delete deletes a task
func (r *GormTaskRepository) Delete(id string) error {
	return r.db.Delete(&models.Task{}, "id = ?", id).Error
}
