package repository

import (
	"errors"

	"github.com/lmercadier/taskboard/internal/models"
	"github.com/lmercadier/taskboard/internal/query"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

// Create creates a new project
func (r *GormProjectRepository) Create(project *models.Project) error {
	return r.db.Create(project).Error
}

// FindByID finds a project by ID with its task list preloaded
func (r *GormProjectRepository) FindByID(ownerID, id string) (*models.Project, error) {
	var project models.Project
	err := r.db.
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("tasks.created_at DESC")
		}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// List retrieves projects matching the filter, most recently updated
// first, along with a task count per project.
func (r *GormProjectRepository) List(ownerID string, filter query.ProjectFilter) ([]models.Project, []int64, error) {
	var projects []models.Project
	err := filter.Apply(r.db.Model(&models.Project{}).Where("projects.owner_id = ?", ownerID)).
		Order("projects.updated_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, nil, err
	}

	counts := make([]int64, len(projects))
	for i, project := range projects {
		if err := r.db.Model(&models.Task{}).
			Where("project_id = ?", project.ID).
			Count(&counts[i]).Error; err != nil {
			return nil, nil, err
		}
	}

	return projects, counts, nil
}

// Update updates a project
func (r *GormProjectRepository) Update(project *models.Project) error {
	return r.db.Omit(clause.Associations).Save(project).Error
}

// Delete deletes a project and cascades to its tasks in a transaction
func (r *GormProjectRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Project{}, "id = ?", id).Error
	})
}
