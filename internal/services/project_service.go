package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lmercadier/taskboard/internal/cache"
	"github.com/lmercadier/taskboard/internal/dto"
	"github.com/lmercadier/taskboard/internal/models"
	"github.com/lmercadier/taskboard/internal/notify"
	"github.com/lmercadier/taskboard/internal/query"
	"github.com/lmercadier/taskboard/internal/repository"
	"github.com/lmercadier/taskboard/internal/stats"
)

var (
	ErrProjectNotFound          = errors.New("project not found")
	ErrNameRequired             = errors.New("name is required")
	ErrNameTooLong              = errors.New("name must be at most 100 characters")
	ErrProjectDescriptionLong   = errors.New("description must be at most 500 characters")
	ErrInvalidProjectStatus     = errors.New("invalid project status")
	ErrProjectOwnerNotAvailable = errors.New("no authenticated user to own the project")
)

const (
	maxProjectNameLen        = 100
	maxProjectDescriptionLen = 500
)

// ProjectService exposes the project read accessors and mutations.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	caches      *cache.Registry
	notifier    notify.Notifier
	now         func() time.Time
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, taskRepo repository.TaskRepository, caches *cache.Registry, notifier notify.Notifier) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		caches:      caches,
		notifier:    notifier,
		now:         time.Now,
	}
}

// listKey parameterizes the project list key by filter signature; the
// unfiltered list keeps the bare key.
func listKey(filter query.ProjectFilter) string {
	if filter.IsZero() {
		return cache.ProjectListKey()
	}
	return cache.ProjectListKey() + "." + filter.Signature()
}

// ListProjects returns the visible projects with their task counts.
// Searched lists revalidate on the quiescence window instead of the
// default delay.
func (s *ProjectService) ListProjects(ctx context.Context, ownerID string, filter query.ProjectFilter) ([]dto.ProjectDTO, bool, error) {
	_, loader := s.caches.ForUser(ownerID)

	get := loader.Get
	if filter.Search != "" {
		get = loader.GetSettled
	}

	res, err := get(ctx, listKey(filter), cache.FreshnessProjectList, func(ctx context.Context) (interface{}, error) {
		projects, counts, err := s.projectRepo.List(ownerID, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		dtos := make([]dto.ProjectDTO, len(projects))
		for i, project := range projects {
			dtos[i] = dto.ToProjectDTO(project, dto.TaskCountOnly(int(counts[i])))
		}
		return dtos, nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.Value.([]dto.ProjectDTO), res.Stale, nil
}

// GetProject returns one project with its embedded task list.
func (s *ProjectService) GetProject(ctx context.Context, ownerID, id string) (dto.ProjectDTO, bool, error) {
	_, loader := s.caches.ForUser(ownerID)

	res, err := loader.Get(ctx, cache.ProjectDetailKey(id), cache.FreshnessProjectDetail, func(ctx context.Context) (interface{}, error) {
		project, err := s.projectRepo.FindByID(ownerID, id)
		if err != nil {
			return nil, err
		}
		return dto.ToProjectDetailDTO(*project), nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.ProjectDTO{}, false, ErrProjectNotFound
		}
		return dto.ProjectDTO{}, false, err
	}
	return res.Value.(dto.ProjectDTO), res.Stale, nil
}

// ProjectStats returns the derived aggregates for one project.
func (s *ProjectService) ProjectStats(ctx context.Context, ownerID, id string) (stats.ProjectStats, bool, error) {
	_, loader := s.caches.ForUser(ownerID)

	res, err := loader.Get(ctx, cache.ProjectStatsKey(id), cache.FreshnessProjectStats, func(ctx context.Context) (interface{}, error) {
		tasks, err := s.taskRepo.ListByProject(ownerID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load project tasks: %w", err)
		}
		return stats.ComputeProject(tasks), nil
	})
	if err != nil {
		return stats.ProjectStats{}, false, err
	}
	return res.Value.(stats.ProjectStats), res.Stale, nil
}

// CreateProjectInput represents input for creating a project.
type CreateProjectInput struct {
	Name        string
	Description string
	Status      models.ProjectStatus
}

// CreateProject creates a project owned by the acting user.
func (s *ProjectService) CreateProject(ctx context.Context, ownerID string, input CreateProjectInput) (dto.ProjectDTO, error) {
	if ownerID == "" {
		return dto.ProjectDTO{}, ErrProjectOwnerNotAvailable
	}
	if input.Name == "" {
		return dto.ProjectDTO{}, ErrNameRequired
	}
	if len(input.Name) > maxProjectNameLen {
		return dto.ProjectDTO{}, ErrNameTooLong
	}
	if len(input.Description) > maxProjectDescriptionLen {
		return dto.ProjectDTO{}, ErrProjectDescriptionLong
	}
	if input.Status != "" && !models.ValidProjectStatus(input.Status) {
		return dto.ProjectDTO{}, ErrInvalidProjectStatus
	}

	project := &models.Project{
		Name:        input.Name,
		Description: input.Description,
		Status:      input.Status,
		OwnerID:     ownerID,
	}

	if err := s.projectRepo.Create(project); err != nil {
		s.notifier.Error(mutationMessage(err, "Failed to create project"))
		return dto.ProjectDTO{}, fmt.Errorf("failed to create project: %w", err)
	}

	fresh := dto.ToProjectDTO(*project, dto.TaskCountOnly(0))

	store, _ := s.caches.ForUser(ownerID)
	store.Set(cache.ProjectDetailKey(fresh.ID), fresh)
	store.InvalidatePrefix(cache.ProjectListKey())

	s.notifier.Success("Project created")
	return fresh, nil
}

// UpdateProjectInput represents a partial update; nil fields stay
// unchanged. Ownership is never updatable.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
}

// UpdateProject merges the changes optimistically, writes them, and
// commits the authoritative row or rolls back.
func (s *ProjectService) UpdateProject(ctx context.Context, ownerID, id string, input UpdateProjectInput) (dto.ProjectDTO, error) {
	if input.Name != nil {
		if *input.Name == "" {
			return dto.ProjectDTO{}, ErrNameRequired
		}
		if len(*input.Name) > maxProjectNameLen {
			return dto.ProjectDTO{}, ErrNameTooLong
		}
	}
	if input.Description != nil && len(*input.Description) > maxProjectDescriptionLen {
		return dto.ProjectDTO{}, ErrProjectDescriptionLong
	}
	if input.Status != nil && !models.ValidProjectStatus(*input.Status) {
		return dto.ProjectDTO{}, ErrInvalidProjectStatus
	}

	store, _ := s.caches.ForUser(ownerID)
	detailKey := cache.ProjectDetailKey(id)

	unlock := store.LockKey(detailKey)
	defer unlock()

	snap := store.Snapshot(detailKey)

	if cached, ok := store.Get(detailKey); ok {
		d := cached.(dto.ProjectDTO)
		if input.Name != nil {
			d.Name = *input.Name
		}
		if input.Description != nil {
			d.Description = *input.Description
		}
		if input.Status != nil {
			d.Status = *input.Status
		}
		d.UpdatedAt = s.now()
		store.Set(detailKey, d)
	}

	fresh, err := s.writeProjectUpdate(ownerID, id, input)
	if err != nil {
		store.Restore(snap)
		s.notifier.Error(mutationMessage(err, "Failed to update project"))
		return dto.ProjectDTO{}, err
	}

	store.Set(detailKey, fresh)
	store.InvalidatePrefix(cache.ProjectListKey())

	s.notifier.Success("Project updated")
	return fresh, nil
}

// DeleteProject removes a project; the store cascades the delete to its
// tasks.
func (s *ProjectService) DeleteProject(ctx context.Context, ownerID, id string) error {
	store, _ := s.caches.ForUser(ownerID)
	detailKey := cache.ProjectDetailKey(id)

	unlock := store.LockKey(detailKey)
	defer unlock()

	touched := append(store.Keys(cache.ProjectListKey()), detailKey)
	snap := store.Snapshot(touched...)

	for _, key := range touched {
		if key == detailKey {
			continue
		}
		if cached, ok := store.Get(key); ok {
			if list, ok := cached.([]dto.ProjectDTO); ok {
				store.Set(key, removeProject(list, id))
			}
		}
	}

	if err := s.deleteProjectRow(ownerID, id); err != nil {
		store.Restore(snap)
		s.notifier.Error(mutationMessage(err, "Failed to delete project"))
		return err
	}

	store.Remove(detailKey)
	store.Remove(cache.ProjectStatsKey(id))
	store.InvalidatePrefix(cache.ProjectListKey())

	// The cascade took the project's tasks with it, so their cached
	// details must read as absent rather than fresh.
	for _, key := range store.Keys(cache.TaskDetailPrefix) {
		if cached, ok := store.Get(key); ok {
			if task, ok := cached.(dto.TaskDTO); ok && task.ProjectID == id {
				store.Remove(key)
			}
		}
	}
	store.Remove(cache.TaskByProjectKey(id))
	store.InvalidatePrefix(cache.TaskListPrefix)
	store.Invalidate(cache.DashboardStatsKey())

	s.notifier.Success("Project deleted")
	return nil
}

func (s *ProjectService) deleteProjectRow(ownerID, id string) error {
	if _, err := s.projectRepo.FindByID(ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to find project: %w", err)
	}
	if err := s.projectRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func (s *ProjectService) writeProjectUpdate(ownerID, id string, input UpdateProjectInput) (dto.ProjectDTO, error) {
	project, err := s.projectRepo.FindByID(ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.ProjectDTO{}, ErrProjectNotFound
		}
		return dto.ProjectDTO{}, fmt.Errorf("failed to find project: %w", err)
	}

	if input.Name != nil {
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.Status != nil {
		project.Status = *input.Status
	}

	if err := s.projectRepo.Update(project); err != nil {
		return dto.ProjectDTO{}, fmt.Errorf("failed to update project: %w", err)
	}

	updated, err := s.projectRepo.FindByID(ownerID, id)
	if err != nil {
		return dto.ProjectDTO{}, fmt.Errorf("failed to reload project: %w", err)
	}
	return dto.ToProjectDetailDTO(*updated), nil
}

func removeProject(list []dto.ProjectDTO, id string) []dto.ProjectDTO {
	out := make([]dto.ProjectDTO, 0, len(list))
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
