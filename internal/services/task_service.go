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
	ErrTaskNotFound       = errors.New("task not found")
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title must be at most 200 characters")
	ErrDescriptionTooLong = errors.New("description is too long")
	ErrProjectRequired    = errors.New("project is required")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidDueDate     = errors.New("due date must be a YYYY-MM-DD date")
)

const (
	maxTaskTitleLen       = 200
	maxTaskDescriptionLen = 1000
)

// TaskService exposes the task read accessors and mutations of the data
// layer. Reads go through the per-user cache; mutations follow the
// optimistic protocol: snapshot, apply, write, then commit the server row
// or roll the snapshots back.
type TaskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	caches      *cache.Registry
	notifier    notify.Notifier
	now         func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository, caches *cache.Registry, notifier notify.Notifier) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		caches:      caches,
		notifier:    notifier,
		now:         time.Now,
	}
}

// ListTasks returns tasks matching the filter, cached per the exact filter
// signature so distinct filter combinations never collide. Searched lists
// revalidate on the quiescence window instead of the default delay.
func (s *TaskService) ListTasks(ctx context.Context, ownerID string, filter query.TaskFilter) ([]dto.TaskDTO, bool, error) {
	_, loader := s.caches.ForUser(ownerID)

	get := loader.Get
	if filter.Search != "" {
		get = loader.GetSettled
	}

	res, err := get(ctx, cache.TaskListKey(filter.Signature()), cache.FreshnessTaskList, func(ctx context.Context) (interface{}, error) {
		tasks, err := s.taskRepo.List(ownerID, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		return dto.ToTaskDTOs(tasks), nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.Value.([]dto.TaskDTO), res.Stale, nil
}

// GetTask returns one task.
func (s *TaskService) GetTask(ctx context.Context, ownerID, id string) (dto.TaskDTO, bool, error) {
	_, loader := s.caches.ForUser(ownerID)

	res, err := loader.Get(ctx, cache.TaskDetailKey(id), cache.FreshnessTaskDetail, func(ctx context.Context) (interface{}, error) {
		task, err := s.taskRepo.FindByID(ownerID, id)
		if err != nil {
			return nil, err
		}
		return dto.ToTaskDTO(*task), nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.TaskDTO{}, false, ErrTaskNotFound
		}
		return dto.TaskDTO{}, false, err
	}
	return res.Value.(dto.TaskDTO), res.Stale, nil
}

// ListProjectTasks returns the unfiltered task list of one project.
func (s *TaskService) ListProjectTasks(ctx context.Context, ownerID, projectID string) ([]dto.TaskDTO, bool, error) {
	_, loader := s.caches.ForUser(ownerID)

	res, err := loader.Get(ctx, cache.TaskByProjectKey(projectID), cache.FreshnessTaskByProject, func(ctx context.Context) (interface{}, error) {
		tasks, err := s.taskRepo.ListByProject(ownerID, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list project tasks: %w", err)
		}
		return dto.ToTaskDTOs(tasks), nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.Value.([]dto.TaskDTO), res.Stale, nil
}

// DashboardStats returns the aggregates over tasks created in the rolling
// 30-day window, recomputed from the current task set.
func (s *TaskService) DashboardStats(ctx context.Context, ownerID string) (stats.DashboardStats, bool, error) {
	_, loader := s.caches.ForUser(ownerID)

	res, err := loader.Get(ctx, cache.DashboardStatsKey(), cache.FreshnessDashboardStats, func(ctx context.Context) (interface{}, error) {
		since := s.now().Add(-stats.DashboardWindow)
		tasks, err := s.taskRepo.ListCreatedSince(ownerID, since)
		if err != nil {
			return nil, fmt.Errorf("failed to load dashboard tasks: %w", err)
		}
		return stats.ComputeDashboard(tasks, stats.Today(s.now())), nil
	})
	if err != nil {
		return stats.DashboardStats{}, false, err
	}
	return res.Value.(stats.DashboardStats), res.Stale, nil
}

// CreateTaskInput represents input for creating a task.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	ProjectID   string
	AssigneeID  *string
	DueDate     *string
}

// CreateTask creates a task under a project. Absent status and priority
// take their defaults.
func (s *TaskService) CreateTask(ctx context.Context, ownerID string, input CreateTaskInput) (dto.TaskDTO, error) {
	if input.Title == "" {
		return dto.TaskDTO{}, ErrTitleRequired
	}
	if len(input.Title) > maxTaskTitleLen {
		return dto.TaskDTO{}, ErrTitleTooLong
	}
	if len(input.Description) > maxTaskDescriptionLen {
		return dto.TaskDTO{}, ErrDescriptionTooLong
	}
	if input.ProjectID == "" {
		return dto.TaskDTO{}, ErrProjectRequired
	}
	if input.Status != "" && !models.ValidTaskStatus(input.Status) {
		return dto.TaskDTO{}, ErrInvalidStatus
	}
	if input.Priority != "" && !models.ValidTaskPriority(input.Priority) {
		return dto.TaskDTO{}, ErrInvalidPriority
	}
	if err := validateDueDate(input.DueDate); err != nil {
		return dto.TaskDTO{}, err
	}

	if _, err := s.projectRepo.FindByID(ownerID, input.ProjectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.TaskDTO{}, ErrProjectNotFound
		}
		return dto.TaskDTO{}, fmt.Errorf("failed to verify project: %w", err)
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		ProjectID:   input.ProjectID,
		AssigneeID:  input.AssigneeID,
		DueDate:     input.DueDate,
	}

	if err := s.taskRepo.Create(task); err != nil {
		s.notifier.Error(mutationMessage(err, "Failed to create task"))
		return dto.TaskDTO{}, fmt.Errorf("failed to create task: %w", err)
	}

	// Re-read so the response is shaped exactly like a list/detail read.
	created, err := s.taskRepo.FindByID(ownerID, task.ID)
	if err != nil {
		return dto.TaskDTO{}, fmt.Errorf("failed to reload task: %w", err)
	}
	fresh := dto.ToTaskDTO(*created)

	store, _ := s.caches.ForUser(ownerID)
	store.Set(cache.TaskDetailKey(fresh.ID), fresh)
	s.invalidateAfterTaskMutation(store, fresh.ProjectID)

	s.notifier.Success("Task created")
	return fresh, nil
}

// UpdateTaskInput represents a partial update; nil fields stay unchanged.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	AssigneeID    *string
	ClearAssignee bool
	DueDate       *string
	ClearDueDate  bool
}

// UpdateTask merges the partial changes optimistically, writes them, and
// commits the authoritative row or rolls back.
func (s *TaskService) UpdateTask(ctx context.Context, ownerID, id string, input UpdateTaskInput) (dto.TaskDTO, error) {
	if input.Title != nil {
		if *input.Title == "" {
			return dto.TaskDTO{}, ErrTitleRequired
		}
		if len(*input.Title) > maxTaskTitleLen {
			return dto.TaskDTO{}, ErrTitleTooLong
		}
	}
	if input.Description != nil && len(*input.Description) > maxTaskDescriptionLen {
		return dto.TaskDTO{}, ErrDescriptionTooLong
	}
	if input.Status != nil && !models.ValidTaskStatus(*input.Status) {
		return dto.TaskDTO{}, ErrInvalidStatus
	}
	if input.Priority != nil && !models.ValidTaskPriority(*input.Priority) {
		return dto.TaskDTO{}, ErrInvalidPriority
	}
	if err := validateDueDate(input.DueDate); err != nil {
		return dto.TaskDTO{}, err
	}

	store, _ := s.caches.ForUser(ownerID)
	detailKey := cache.TaskDetailKey(id)

	// Issue: the key lock serializes mutations on this task, so the
	// snapshot below is never taken from another mutation's optimistic
	// state.
	unlock := store.LockKey(detailKey)
	defer unlock()

	snap := store.Snapshot(detailKey)

	// Apply: merge the intended changes into the cached entity.
	if cached, ok := store.Get(detailKey); ok {
		d := cached.(dto.TaskDTO)
		applyTaskPatch(&d, input)
		d.UpdatedAt = s.now()
		store.Set(detailKey, d)
	}

	fresh, err := s.writeTaskUpdate(ownerID, id, input)
	if err != nil {
		// Rollback: the server state is assumed unchanged.
		store.Restore(snap)
		s.notifier.Error(mutationMessage(err, "Failed to update task"))
		return dto.TaskDTO{}, err
	}

	// Commit: the authoritative row wins over the optimistic guess.
	store.Set(detailKey, fresh)
	s.invalidateAfterTaskMutation(store, fresh.ProjectID)

	s.notifier.Success("Task updated")
	return fresh, nil
}

// SetTaskStatus is the lightweight quick-status mutation: it patches only
// the status field and timestamp.
func (s *TaskService) SetTaskStatus(ctx context.Context, ownerID, id string, status models.TaskStatus) (dto.TaskDTO, error) {
	if !models.ValidTaskStatus(status) {
		return dto.TaskDTO{}, ErrInvalidStatus
	}

	store, _ := s.caches.ForUser(ownerID)
	detailKey := cache.TaskDetailKey(id)

	unlock := store.LockKey(detailKey)
	defer unlock()

	snap := store.Snapshot(detailKey)

	if cached, ok := store.Get(detailKey); ok {
		d := cached.(dto.TaskDTO)
		d.Status = status
		d.UpdatedAt = s.now()
		store.Set(detailKey, d)
	}

	fresh, err := s.writeTaskUpdate(ownerID, id, UpdateTaskInput{Status: &status})
	if err != nil {
		store.Restore(snap)
		s.notifier.Error(mutationMessage(err, "Failed to update task status"))
		return dto.TaskDTO{}, err
	}

	store.Set(detailKey, fresh)
	s.invalidateAfterTaskMutation(store, fresh.ProjectID)

	// Quick status changes notify only on failure; the board shows the
	// moved card itself.
	return fresh, nil
}

// DeleteTask removes a task, optimistically dropping it from every cached
// list it appears in.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id string) error {
	store, _ := s.caches.ForUser(ownerID)
	detailKey := cache.TaskDetailKey(id)

	unlock := store.LockKey(detailKey)
	defer unlock()

	// The byProject key is only known if the detail was ever cached.
	projectID := ""
	if cached, ok := store.Get(detailKey); ok {
		projectID = cached.(dto.TaskDTO).ProjectID
	}

	touched := append(store.Keys(cache.TaskListPrefix), detailKey)
	if projectID != "" {
		touched = append(touched, cache.TaskByProjectKey(projectID))
	}
	snap := store.Snapshot(touched...)

	for _, key := range touched {
		if key == detailKey {
			continue
		}
		if cached, ok := store.Get(key); ok {
			if list, ok := cached.([]dto.TaskDTO); ok {
				store.Set(key, removeTask(list, id))
			}
		}
	}

	if err := s.deleteTaskRow(ownerID, id); err != nil {
		// Rollback restores the lists verbatim; exact ordering is fixed
		// up by the next refetch once the window lapses.
		store.Restore(snap)
		s.notifier.Error(mutationMessage(err, "Failed to delete task"))
		return err
	}

	store.Remove(detailKey)
	s.invalidateAfterTaskMutation(store, projectID)

	s.notifier.Success("Task deleted")
	return nil
}

func (s *TaskService) deleteTaskRow(ownerID, id string) error {
	if _, err := s.taskRepo.FindByID(ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}
	if err := s.taskRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// writeTaskUpdate performs the server write for update and status-change
// mutations and returns the authoritative row shaped like any read.
func (s *TaskService) writeTaskUpdate(ownerID, id string, input UpdateTaskInput) (dto.TaskDTO, error) {
	task, err := s.taskRepo.FindByID(ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.TaskDTO{}, ErrTaskNotFound
		}
		return dto.TaskDTO{}, fmt.Errorf("failed to find task: %w", err)
	}

	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.ClearAssignee {
		task.AssigneeID = nil
	} else if input.AssigneeID != nil {
		task.AssigneeID = input.AssigneeID
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}

	if err := s.taskRepo.Update(task); err != nil {
		return dto.TaskDTO{}, fmt.Errorf("failed to update task: %w", err)
	}

	updated, err := s.taskRepo.FindByID(ownerID, id)
	if err != nil {
		return dto.TaskDTO{}, fmt.Errorf("failed to reload task: %w", err)
	}
	return dto.ToTaskDTO(*updated), nil
}

// invalidateAfterTaskMutation applies the invalidation rules for a task
// write: every list signature, the task's project list, and the dashboard
// aggregate. An unknown project skips only the byProject key.
func (s *TaskService) invalidateAfterTaskMutation(store *cache.Store, projectID string) {
	store.InvalidatePrefix(cache.TaskListPrefix)
	if projectID != "" {
		store.Invalidate(cache.TaskByProjectKey(projectID))
	}
	store.Invalidate(cache.DashboardStatsKey())
}

func applyTaskPatch(d *dto.TaskDTO, input UpdateTaskInput) {
	if input.Title != nil {
		d.Title = *input.Title
	}
	if input.Description != nil {
		d.Description = *input.Description
	}
	if input.Status != nil {
		d.Status = *input.Status
	}
	if input.Priority != nil {
		d.Priority = *input.Priority
	}
	if input.ClearAssignee {
		d.AssigneeID = nil
	} else if input.AssigneeID != nil {
		d.AssigneeID = input.AssigneeID
	}
	if input.ClearDueDate {
		d.DueDate = nil
	} else if input.DueDate != nil {
		d.DueDate = input.DueDate
	}
}

func removeTask(list []dto.TaskDTO, id string) []dto.TaskDTO {
	out := make([]dto.TaskDTO, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func validateDueDate(date *string) error {
	if date == nil || *date == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", *date); err != nil {
		return ErrInvalidDueDate
	}
	return nil
}

// mutationMessage carries the server-provided text when available, else
// the generic fallback.
func mutationMessage(err error, fallback string) string {
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
