package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/lmercadier/taskboard/internal/errors"
	"github.com/lmercadier/taskboard/internal/export"
	"github.com/lmercadier/taskboard/internal/middleware"
	"github.com/lmercadier/taskboard/internal/models"
	"github.com/lmercadier/taskboard/internal/query"
	"github.com/lmercadier/taskboard/internal/services"
)

// TaskHandler coordinates task HTTP handlers.
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// taskFilterFromQuery builds the filter from query parameters. Set fields
// accept comma-separated values.
func taskFilterFromQuery(c *gin.Context) query.TaskFilter {
	f := query.TaskFilter{
		ProjectID:  c.Query("project_id"),
		AssigneeID: c.Query("assignee_id"),
		Search:     strings.TrimSpace(c.Query("search")),
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
	}
	for _, s := range splitParam(c.Query("status")) {
		f.Status = append(f.Status, models.TaskStatus(s))
	}
	for _, p := range splitParam(c.Query("priority")) {
		f.Priority = append(f.Priority, models.TaskPriority(p))
	}
	return f
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ListTasks returns tasks matching the optional filter.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	tasks, stale, err := h.taskService.ListTasks(c.Request.Context(), userID, taskFilterFromQuery(c))
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"stale": stale,
	})
}

// GetTask returns one task.
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	task, stale, err := h.taskService.GetTask(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":  task,
		"stale": stale,
	})
}

// CreateTask creates a new task.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type CreateTaskRequest struct {
		Title       string  `json:"title" binding:"required,max=200"`
		Description string  `json:"description" binding:"max=1000"`
		Status      string  `json:"status" binding:"omitempty,oneof=todo in_progress done"`
		Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
		ProjectID   string  `json:"project_id" binding:"required"`
		AssigneeID  *string `json:"assignee_id"`
		DueDate     *string `json:"due_date"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.TaskPriority(req.Priority),
		ProjectID:   req.ProjectID,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// UpdateTask applies a partial update to a task.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type UpdateTaskRequest struct {
		Title         *string `json:"title" binding:"omitempty,max=200"`
		Description   *string `json:"description" binding:"omitempty,max=1000"`
		Status        *string `json:"status" binding:"omitempty,oneof=todo in_progress done"`
		Priority      *string `json:"priority" binding:"omitempty,oneof=low medium high"`
		AssigneeID    *string `json:"assignee_id"`
		ClearAssignee bool    `json:"clear_assignee"`
		DueDate       *string `json:"due_date"`
		ClearDueDate  bool    `json:"clear_due_date"`
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.UpdateTaskInput{
		Title:         req.Title,
		Description:   req.Description,
		AssigneeID:    req.AssigneeID,
		ClearAssignee: req.ClearAssignee,
		DueDate:       req.DueDate,
		ClearDueDate:  req.ClearDueDate,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		input.Priority = &priority
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, c.Param("id"), input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// SetTaskStatus is the lightweight quick-status mutation.
func (h *TaskHandler) SetTaskStatus(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type SetStatusRequest struct {
		Status string `json:"status" binding:"required,oneof=todo in_progress done"`
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.SetTaskStatus(c.Request.Context(), userID, c.Param("id"), models.TaskStatus(req.Status))
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// DeleteTask deletes a task.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// ExportTasks streams the filtered task list as a CSV attachment.
func (h *TaskHandler) ExportTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	tasks, _, err := h.taskService.ListTasks(c.Request.Context(), userID, taskFilterFromQuery(c))
	if err != nil {
		respondTaskError(c, err)
		return
	}

	filename := export.TasksFilename(time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", []byte(export.TasksCSV(tasks)))
}

// DashboardStats returns the rolling 30-day aggregates.
func (h *TaskHandler) DashboardStats(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	dashboard, stale, err := h.taskService.DashboardStats(c.Request.Context(), userID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": dashboard,
		"stale": stale,
	})
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrProjectNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleTooLong),
		errors.Is(err, services.ErrDescriptionTooLong),
		errors.Is(err, services.ErrProjectRequired),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrInvalidDueDate):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, err.Error())
	}
}
