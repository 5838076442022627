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

// ProjectHandler coordinates project HTTP handlers.
type ProjectHandler struct {
	projectService *services.ProjectService
	taskService    *services.TaskService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService *services.ProjectService, taskService *services.TaskService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		taskService:    taskService,
	}
}

func projectFilterFromQuery(c *gin.Context) query.ProjectFilter {
	f := query.ProjectFilter{
		Search:      strings.TrimSpace(c.Query("search")),
		CreatedFrom: c.Query("created_from"),
		CreatedTo:   c.Query("created_to"),
	}
	for _, s := range splitParam(c.Query("status")) {
		f.Status = append(f.Status, models.ProjectStatus(s))
	}
	return f
}

// ListProjects returns the visible projects with task counts.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	projects, stale, err := h.projectService.ListProjects(c.Request.Context(), userID, projectFilterFromQuery(c))
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"stale":    stale,
	})
}

// GetProject returns one project with its embedded task list.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	project, stale, err := h.projectService.GetProject(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
		"stale":   stale,
	})
}

// CreateProject creates a project owned by the acting user.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type CreateProjectRequest struct {
		Name        string `json:"name" binding:"required,max=100"`
		Description string `json:"description" binding:"max=500"`
		Status      string `json:"status" binding:"omitempty,oneof=active completed archived"`
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), userID, services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      models.ProjectStatus(req.Status),
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// UpdateProject applies a partial update. Ownership never changes.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type UpdateProjectRequest struct {
		Name        *string `json:"name" binding:"omitempty,max=100"`
		Description *string `json:"description" binding:"omitempty,max=500"`
		Status      *string `json:"status" binding:"omitempty,oneof=active completed archived"`
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		input.Status = &status
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), userID, c.Param("id"), input)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// DeleteProject deletes a project; its tasks go with it.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

// GetProjectStats returns the derived aggregates for one project.
func (h *ProjectHandler) GetProjectStats(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	projectStats, stale, err := h.projectService.ProjectStats(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": projectStats,
		"stale": stale,
	})
}

// ListProjectTasks returns the unfiltered task list of one project.
func (h *ProjectHandler) ListProjectTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	tasks, stale, err := h.taskService.ListProjectTasks(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"stale": stale,
	})
}

// ExportProjects streams the project list as a CSV attachment.
func (h *ProjectHandler) ExportProjects(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	projects, _, err := h.projectService.ListProjects(c.Request.Context(), userID, projectFilterFromQuery(c))
	if err != nil {
		respondProjectError(c, err)
		return
	}

	filename := export.ProjectsFilename(time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", []byte(export.ProjectsCSV(projects)))
}

func respondProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrNameTooLong),
		errors.Is(err, services.ErrProjectDescriptionLong),
		errors.Is(err, services.ErrInvalidProjectStatus):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrProjectOwnerNotAvailable):
		apierrors.Unauthorized(c, err.Error())
	default:
		apierrors.InternalError(c, err.Error())
	}
}
