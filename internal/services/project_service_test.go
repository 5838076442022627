package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lmercadier/taskboard/internal/cache"
	"github.com/lmercadier/taskboard/internal/dto"
	"github.com/lmercadier/taskboard/internal/models"
	"github.com/lmercadier/taskboard/internal/query"
	"github.com/lmercadier/taskboard/internal/repository"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// failingProjectRepo injects write failures over a working repository.
type failingProjectRepo struct {
	repository.ProjectRepository
	failUpdate bool
	failDelete bool
}

func (r *failingProjectRepo) Update(project *models.Project) error {
	if r.failUpdate {
		return errors.New("server rejected the write")
	}
	return r.ProjectRepository.Update(project)
}

func (r *failingProjectRepo) Delete(id string) error {
	if r.failDelete {
		return errors.New("server rejected the delete")
	}
	return r.ProjectRepository.Delete(id)
}

type ProjectServiceSuite struct {
	suite.Suite
	db          *gorm.DB
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	caches      *cache.Registry
	notifier    *recordingNotifier
	service     *ProjectService

	ownerID string
}

func (suite *ProjectServiceSuite) SetupTest() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(&models.User{}, &models.Project{}, &models.Task{})
	suite.Require().NoError(err)

	suite.projectRepo = repository.NewProjectRepository(suite.db)
	suite.taskRepo = repository.NewTaskRepository(suite.db)
	suite.caches = cache.NewRegistry()
	suite.notifier = &recordingNotifier{}
	suite.service = NewProjectService(suite.projectRepo, suite.taskRepo, suite.caches, suite.notifier)

	suite.ownerID = "owner-1"
}

func (suite *ProjectServiceSuite) TearDownTest() {
	suite.caches.Close()
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *ProjectServiceSuite) failingService(failUpdate, failDelete bool) *ProjectService {
	repo := &failingProjectRepo{
		ProjectRepository: suite.projectRepo,
		failUpdate:        failUpdate,
		failDelete:        failDelete,
	}
	return NewProjectService(repo, suite.taskRepo, suite.caches, suite.notifier)
}

func (suite *ProjectServiceSuite) createProject(name string) dto.ProjectDTO {
	project, err := suite.service.CreateProject(context.Background(), suite.ownerID, CreateProjectInput{
		Name: name,
	})
	suite.Require().NoError(err)
	return project
}

func (suite *ProjectServiceSuite) addTask(projectID, title string) *models.Task {
	task := &models.Task{Title: title, ProjectID: projectID}
	suite.Require().NoError(suite.db.Create(task).Error)
	return task
}

func (suite *ProjectServiceSuite) TestCreateProject_Defaults() {
	project := suite.createProject("Quarterly")

	suite.NotEmpty(project.ID)
	suite.Equal(models.ProjectStatusActive, project.Status)
	suite.Equal(suite.ownerID, project.OwnerID)
	suite.Equal(0, project.TaskCount)
}

func (suite *ProjectServiceSuite) TestCreateProject_RequiresOwner() {
	_, err := suite.service.CreateProject(context.Background(), "", CreateProjectInput{Name: "Nobody's"})
	suite.ErrorIs(err, ErrProjectOwnerNotAvailable)
}

func (suite *ProjectServiceSuite) TestCreateProject_Validation() {
	_, err := suite.service.CreateProject(context.Background(), suite.ownerID, CreateProjectInput{})
	suite.ErrorIs(err, ErrNameRequired)

	_, err = suite.service.CreateProject(context.Background(), suite.ownerID, CreateProjectInput{
		Name: string(make([]byte, 101)),
	})
	suite.ErrorIs(err, ErrNameTooLong)

	_, err = suite.service.CreateProject(context.Background(), suite.ownerID, CreateProjectInput{
		Name:   "ok",
		Status: "bogus",
	})
	suite.ErrorIs(err, ErrInvalidProjectStatus)
}

func (suite *ProjectServiceSuite) TestListProjects_CarriesTaskCounts() {
	project := suite.createProject("Busy")
	suite.addTask(project.ID, "one")
	suite.addTask(project.ID, "two")
	suite.createProject("Idle")

	projects, stale, err := suite.service.ListProjects(context.Background(), suite.ownerID, query.ProjectFilter{})

	suite.Require().NoError(err)
	suite.False(stale)
	suite.Require().Len(projects, 2)

	byName := map[string]int{}
	for _, p := range projects {
		byName[p.Name] = p.TaskCount
	}
	suite.Equal(2, byName["Busy"])
	suite.Equal(0, byName["Idle"])
}

func (suite *ProjectServiceSuite) TestGetProject_EmbedsTaskList() {
	project := suite.createProject("Detailed")
	suite.addTask(project.ID, "embedded")

	detail, stale, err := suite.service.GetProject(context.Background(), suite.ownerID, project.ID)

	suite.Require().NoError(err)
	suite.False(stale)
	suite.Equal(1, detail.TaskCount)
	suite.Require().Len(detail.Tasks, 1)
	suite.Equal("embedded", detail.Tasks[0].Title)
}

func (suite *ProjectServiceSuite) TestGetProject_NotFound() {
	_, _, err := suite.service.GetProject(context.Background(), suite.ownerID, "missing")
	suite.ErrorIs(err, ErrProjectNotFound)
}

func (suite *ProjectServiceSuite) TestProjectStats() {
	project := suite.createProject("Measured")
	done := suite.addTask(project.ID, "done one")
	suite.Require().NoError(suite.db.Model(done).Updates(map[string]interface{}{
		"status":   models.TaskStatusDone,
		"priority": models.TaskPriorityHigh,
	}).Error)
	suite.addTask(project.ID, "open one")

	projectStats, _, err := suite.service.ProjectStats(context.Background(), suite.ownerID, project.ID)

	suite.Require().NoError(err)
	suite.Equal(2, projectStats.Total)
	suite.Equal(1, projectStats.Completed)
	suite.Equal(1, projectStats.Todo)
	suite.Equal(1, projectStats.HighPriority)
}

func (suite *ProjectServiceSuite) TestUpdateProject_NeverChangesOwner() {
	project := suite.createProject("Owned")

	updated, err := suite.service.UpdateProject(context.Background(), suite.ownerID, project.ID, UpdateProjectInput{
		Name: strptr("Renamed"),
	})

	suite.Require().NoError(err)
	suite.Equal("Renamed", updated.Name)
	suite.Equal(suite.ownerID, updated.OwnerID)

	row, err := suite.projectRepo.FindByID(suite.ownerID, project.ID)
	suite.Require().NoError(err)
	suite.Equal(suite.ownerID, row.OwnerID)
}

func (suite *ProjectServiceSuite) TestUpdateProject_RollsBackOnWriteFailure() {
	project := suite.createProject("Stable")

	primed, _, err := suite.service.GetProject(context.Background(), suite.ownerID, project.ID)
	suite.Require().NoError(err)

	failing := suite.failingService(true, false)
	_, err = failing.UpdateProject(context.Background(), suite.ownerID, project.ID, UpdateProjectInput{
		Name: strptr("Never lands"),
	})
	suite.Require().Error(err)

	store, _ := suite.caches.ForUser(suite.ownerID)
	cached, present := store.Get(cache.ProjectDetailKey(project.ID))
	suite.True(present)
	suite.Equal(primed, cached.(dto.ProjectDTO))

	row, err := suite.projectRepo.FindByID(suite.ownerID, project.ID)
	suite.Require().NoError(err)
	suite.Equal("Stable", row.Name)
}

func (suite *ProjectServiceSuite) TestDeleteProject_CascadesAndCleansCaches() {
	project := suite.createProject("Doomed")
	task := suite.addTask(project.ID, "goes too")

	// Prime the caches the cascade must clean up.
	_, _, err := suite.service.GetProject(context.Background(), suite.ownerID, project.ID)
	suite.Require().NoError(err)
	taskService := NewTaskService(suite.taskRepo, suite.projectRepo, suite.caches, suite.notifier)
	_, _, err = taskService.ListProjectTasks(context.Background(), suite.ownerID, project.ID)
	suite.Require().NoError(err)
	_, _, err = taskService.ListTasks(context.Background(), suite.ownerID, query.TaskFilter{})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DeleteProject(context.Background(), suite.ownerID, project.ID))

	// Project and task rows are both gone.
	_, err = suite.projectRepo.FindByID(suite.ownerID, project.ID)
	suite.ErrorIs(err, repository.ErrNotFound)
	var taskCount int64
	suite.db.Model(&models.Task{}).Where("id = ?", task.ID).Count(&taskCount)
	suite.Equal(int64(0), taskCount)

	// Detail and per-project task caches are dropped, task lists stale.
	store, _ := suite.caches.ForUser(suite.ownerID)
	_, present := store.Get(cache.ProjectDetailKey(project.ID))
	suite.False(present)
	_, present = store.Get(cache.TaskByProjectKey(project.ID))
	suite.False(present)
	_, _, fresh := store.Lookup(cache.TaskListKey(query.TaskFilter{}.Signature()), cache.FreshnessTaskList)
	suite.False(fresh)
}

func (suite *ProjectServiceSuite) TestDeleteProject_DropsCascadedTaskDetails() {
	project := suite.createProject("Doomed")
	task := suite.addTask(project.ID, "goes too")
	keeper := suite.createProject("Keeper")
	kept := suite.addTask(keeper.ID, "stays")

	// Prime both task details so they sit fresh in the cache.
	taskService := NewTaskService(suite.taskRepo, suite.projectRepo, suite.caches, suite.notifier)
	_, _, err := taskService.GetTask(context.Background(), suite.ownerID, task.ID)
	suite.Require().NoError(err)
	_, _, err = taskService.GetTask(context.Background(), suite.ownerID, kept.ID)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DeleteProject(context.Background(), suite.ownerID, project.ID))

	// The cascaded task reads as absent, not served from its stale detail.
	_, _, err = taskService.GetTask(context.Background(), suite.ownerID, task.ID)
	suite.ErrorIs(err, ErrTaskNotFound)

	// Tasks of other projects keep their cached detail.
	store, _ := suite.caches.ForUser(suite.ownerID)
	_, present := store.Get(cache.TaskDetailKey(kept.ID))
	suite.True(present)
}

func (suite *ProjectServiceSuite) TestDeleteProject_RollsBackListRemoval() {
	project := suite.createProject("Survivor")

	list, _, err := suite.service.ListProjects(context.Background(), suite.ownerID, query.ProjectFilter{})
	suite.Require().NoError(err)
	suite.Require().Len(list, 1)

	failing := suite.failingService(false, true)
	err = failing.DeleteProject(context.Background(), suite.ownerID, project.ID)
	suite.Require().Error(err)

	store, _ := suite.caches.ForUser(suite.ownerID)
	cached, present := store.Get(cache.ProjectListKey())
	suite.Require().True(present)
	restored := cached.([]dto.ProjectDTO)
	suite.Require().Len(restored, 1)
	suite.Equal(project.ID, restored[0].ID)

	_, err = suite.projectRepo.FindByID(suite.ownerID, project.ID)
	suite.NoError(err)
}

func (suite *ProjectServiceSuite) TestDeleteProject_NotFound() {
	err := suite.service.DeleteProject(context.Background(), suite.ownerID, "missing")
	suite.ErrorIs(err, ErrProjectNotFound)
}

func TestProjectServiceSuite(t *testing.T) {
	suite.Run(t, new(ProjectServiceSuite))
}
