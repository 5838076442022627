package services

import (
	"context"
	"errors"
	"sync"
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

func strptr(s string) *string {
	return &s
}

// recordingNotifier captures notifications for assertion.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, message)
}

func (n *recordingNotifier) lastFailure() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.failures) == 0 {
		return ""
	}
	return n.failures[len(n.failures)-1]
}

// failingTaskRepo injects write failures over a working repository.
type failingTaskRepo struct {
	repository.TaskRepository
	failUpdate bool
	failDelete bool
}

func (r *failingTaskRepo) Update(task *models.Task) error {
	if r.failUpdate {
		return errors.New("server rejected the write")
	}
	return r.TaskRepository.Update(task)
}

func (r *failingTaskRepo) Delete(id string) error {
	if r.failDelete {
		return errors.New("server rejected the delete")
	}
	return r.TaskRepository.Delete(id)
}

type TaskServiceSuite struct {
	suite.Suite
	db          *gorm.DB
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	caches      *cache.Registry
	notifier    *recordingNotifier
	service     *TaskService

	ownerID   string
	projectID string
}

func (suite *TaskServiceSuite) SetupTest() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(&models.User{}, &models.Project{}, &models.Task{})
	suite.Require().NoError(err)

	suite.taskRepo = repository.NewTaskRepository(suite.db)
	suite.projectRepo = repository.NewProjectRepository(suite.db)
	suite.caches = cache.NewRegistry()
	suite.notifier = &recordingNotifier{}
	suite.service = NewTaskService(suite.taskRepo, suite.projectRepo, suite.caches, suite.notifier)

	suite.ownerID = "owner-1"
	suite.projectID = "project-1"
	suite.Require().NoError(suite.db.Create(&models.Project{
		ID:      suite.projectID,
		Name:    "Quarterly",
		OwnerID: suite.ownerID,
	}).Error)
}

func (suite *TaskServiceSuite) TearDownTest() {
	suite.caches.Close()
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

// failingService returns a service over the same cache registry whose task
// writes fail.
func (suite *TaskServiceSuite) failingService(failUpdate, failDelete bool) *TaskService {
	repo := &failingTaskRepo{
		TaskRepository: suite.taskRepo,
		failUpdate:     failUpdate,
		failDelete:     failDelete,
	}
	return NewTaskService(repo, suite.projectRepo, suite.caches, suite.notifier)
}

func (suite *TaskServiceSuite) createTask(title string) dto.TaskDTO {
	task, err := suite.service.CreateTask(context.Background(), suite.ownerID, CreateTaskInput{
		Title:     title,
		ProjectID: suite.projectID,
	})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskServiceSuite) TestCreateTask_Defaults() {
	task, err := suite.service.CreateTask(context.Background(), suite.ownerID, CreateTaskInput{
		Title:     "Minimal",
		ProjectID: suite.projectID,
	})

	suite.Require().NoError(err)
	suite.NotEmpty(task.ID)
	suite.Equal(models.TaskStatusTodo, task.Status)
	suite.Equal(models.TaskPriorityMedium, task.Priority)
	suite.Nil(task.AssigneeID)
	suite.Nil(task.DueDate)

	// The response is shaped like a read: parent reference included.
	suite.Require().NotNil(task.Project)
	suite.Equal("Quarterly", task.Project.Name)
}

func (suite *TaskServiceSuite) TestCreateTask_SeedsDetailCache() {
	task := suite.createTask("Cached")

	store, _ := suite.caches.ForUser(suite.ownerID)
	cached, present := store.Get(cache.TaskDetailKey(task.ID))
	suite.True(present)
	suite.Equal(task, cached.(dto.TaskDTO))
}

func (suite *TaskServiceSuite) TestCreateTask_Validation() {
	cases := []struct {
		name  string
		input CreateTaskInput
		want  error
	}{
		{"missing title", CreateTaskInput{ProjectID: suite.projectID}, ErrTitleRequired},
		{"title too long", CreateTaskInput{Title: string(make([]byte, 201)), ProjectID: suite.projectID}, ErrTitleTooLong},
		{"missing project", CreateTaskInput{Title: "x"}, ErrProjectRequired},
		{"invalid status", CreateTaskInput{Title: "x", ProjectID: suite.projectID, Status: "bogus"}, ErrInvalidStatus},
		{"invalid priority", CreateTaskInput{Title: "x", ProjectID: suite.projectID, Priority: "bogus"}, ErrInvalidPriority},
		{"invalid due date", CreateTaskInput{Title: "x", ProjectID: suite.projectID, DueDate: strptr("next tuesday")}, ErrInvalidDueDate},
	}

	for _, tc := range cases {
		_, err := suite.service.CreateTask(context.Background(), suite.ownerID, tc.input)
		suite.ErrorIs(err, tc.want, tc.name)
	}
}

func (suite *TaskServiceSuite) TestCreateTask_UnknownProject() {
	_, err := suite.service.CreateTask(context.Background(), suite.ownerID, CreateTaskInput{
		Title:     "Orphan",
		ProjectID: "nope",
	})

	suite.ErrorIs(err, ErrProjectNotFound)
}

func (suite *TaskServiceSuite) TestListTasks_ServedFromCacheWithinWindow() {
	suite.createTask("Visible")

	first, stale, err := suite.service.ListTasks(context.Background(), suite.ownerID, query.TaskFilter{
		Status: []models.TaskStatus{models.TaskStatusTodo},
	})
	suite.Require().NoError(err)
	suite.False(stale)
	suite.Len(first, 1)

	// A row written behind the cache's back is not seen inside the window.
	suite.Require().NoError(suite.db.Create(&models.Task{
		ID:        "sneaky",
		Title:     "Unseen",
		Status:    models.TaskStatusTodo,
		Priority:  models.TaskPriorityLow,
		ProjectID: suite.projectID,
	}).Error)

	second, stale, err := suite.service.ListTasks(context.Background(), suite.ownerID, query.TaskFilter{
		Status: []models.TaskStatus{models.TaskStatusTodo},
	})
	suite.Require().NoError(err)
	suite.False(stale)
	suite.Len(second, 1)
}

func (suite *TaskServiceSuite) TestListTasks_DistinctFiltersDistinctEntries() {
	suite.createTask("Todo one")

	todo, _, err := suite.service.ListTasks(context.Background(), suite.ownerID, query.TaskFilter{
		Status: []models.TaskStatus{models.TaskStatusTodo},
	})
	suite.Require().NoError(err)
	suite.Len(todo, 1)

	done, _, err := suite.service.ListTasks(context.Background(), suite.ownerID, query.TaskFilter{
		Status: []models.TaskStatus{models.TaskStatusDone},
	})
	suite.Require().NoError(err)
	suite.Empty(done)
}

func (suite *TaskServiceSuite) TestGetTask_NotFound() {
	_, _, err := suite.service.GetTask(context.Background(), suite.ownerID, "missing")
	suite.ErrorIs(err, ErrTaskNotFound)
}

func (suite *TaskServiceSuite) TestGetTask_InvisibleAcrossOwners() {
	task := suite.createTask("Private")

	_, _, err := suite.service.GetTask(context.Background(), "someone-else", task.ID)
	suite.ErrorIs(err, ErrTaskNotFound)
}

func (suite *TaskServiceSuite) TestUpdateTask_CommitsAuthoritativeRow() {
	task := suite.createTask("Before")

	updated, err := suite.service.UpdateTask(context.Background(), suite.ownerID, task.ID, UpdateTaskInput{
		Title:   strptr("After"),
		DueDate: strptr("2025-06-01"),
	})

	suite.Require().NoError(err)
	suite.Equal("After", updated.Title)
	suite.Equal("2025-06-01", *updated.DueDate)

	// The detail cache holds the server row, not the optimistic guess.
	store, _ := suite.caches.ForUser(suite.ownerID)
	cached, present := store.Get(cache.TaskDetailKey(task.ID))
	suite.True(present)
	suite.Equal(updated, cached.(dto.TaskDTO))

	row, err := suite.taskRepo.FindByID(suite.ownerID, task.ID)
	suite.Require().NoError(err)
	suite.Equal("After", row.Title)
}

func (suite *TaskServiceSuite) TestUpdateTask_InvalidatesListsAndDashboard() {
	task := suite.createTask("Listed")

	_, _, err := suite.service.ListTasks(context.Background(), suite.ownerID, query.TaskFilter{})
	suite.Require().NoError(err)
	_, _, err = suite.service.DashboardStats(context.Background(), suite.ownerID)
	suite.Require().NoError(err)

	_, err = suite.service.UpdateTask(context.Background(), suite.ownerID, task.ID, UpdateTaskInput{
		Title: strptr("Renamed"),
	})
	suite.Require().NoError(err)

	store, _ := suite.caches.ForUser(suite.ownerID)
	_, _, fresh := store.Lookup(cache.TaskListKey(query.TaskFilter{}.Signature()), cache.FreshnessTaskList)
	suite.False(fresh)
	_, _, fresh = store.Lookup(cache.DashboardStatsKey(), cache.FreshnessDashboardStats)
	suite.False(fresh)
	_, _, fresh = store.Lookup(cache.TaskByProjectKey(suite.projectID), cache.FreshnessTaskByProject)
	suite.False(fresh)
}

func (suite *TaskServiceSuite) TestUpdateTask_RollsBackOnWriteFailure() {
	task := suite.createTask("Stable")

	// Prime the detail cache with the server row.
	primed, _, err := suite.service.GetTask(context.Background(), suite.ownerID, task.ID)
	suite.Require().NoError(err)

	failing := suite.failingService(true, false)
	_, err = failing.UpdateTask(context.Background(), suite.ownerID, task.ID, UpdateTaskInput{
		Title: strptr("Never lands"),
	})
	suite.Require().Error(err)

	// The optimistic title is gone; the cached row matches the snapshot.
	store, _ := suite.caches.ForUser(suite.ownerID)
	cached, present := store.Get(cache.TaskDetailKey(task.ID))
	suite.True(present)
	suite.Equal(primed, cached.(dto.TaskDTO))

	// The server row never changed.
	row, err := suite.taskRepo.FindByID(suite.ownerID, task.ID)
	suite.Require().NoError(err)
	suite.Equal("Stable", row.Title)

	// The failure notification carries the server message.
	suite.Contains(suite.notifier.lastFailure(), "server rejected the write")
}

func (suite *TaskServiceSuite) TestUpdateTask_NotFound() {
	_, err := suite.service.UpdateTask(context.Background(), suite.ownerID, "missing", UpdateTaskInput{
		Title: strptr("x"),
	})
	suite.ErrorIs(err, ErrTaskNotFound)
}

func (suite *TaskServiceSuite) TestSetTaskStatus() {
	task := suite.createTask("Quick change")

	updated, err := suite.service.SetTaskStatus(context.Background(), suite.ownerID, task.ID, models.TaskStatusDone)

	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusDone, updated.Status)
	// Everything else is untouched.
	suite.Equal(task.Title, updated.Title)
	suite.Equal(task.Priority, updated.Priority)
}

func (suite *TaskServiceSuite) TestSetTaskStatus_NoSuccessNotification() {
	task := suite.createTask("Silent flip")
	before := len(suite.notifier.successes)

	_, err := suite.service.SetTaskStatus(context.Background(), suite.ownerID, task.ID, models.TaskStatusInProgress)

	suite.Require().NoError(err)
	suite.Len(suite.notifier.successes, before)
}

func (suite *TaskServiceSuite) TestSetTaskStatus_InvalidStatus() {
	task := suite.createTask("Immutable")

	_, err := suite.service.SetTaskStatus(context.Background(), suite.ownerID, task.ID, "bogus")
	suite.ErrorIs(err, ErrInvalidStatus)
}

func (suite *TaskServiceSuite) TestDeleteTask() {
	task := suite.createTask("Doomed")

	suite.Require().NoError(suite.service.DeleteTask(context.Background(), suite.ownerID, task.ID))

	store, _ := suite.caches.ForUser(suite.ownerID)
	_, present := store.Get(cache.TaskDetailKey(task.ID))
	suite.False(present)

	_, err := suite.taskRepo.FindByID(suite.ownerID, task.ID)
	suite.ErrorIs(err, repository.ErrNotFound)
}

func (suite *TaskServiceSuite) TestDeleteTask_RollsBackListRemoval() {
	task := suite.createTask("Survivor")

	// Prime a list so the optimistic removal has something to touch.
	list, _, err := suite.service.ListTasks(context.Background(), suite.ownerID, query.TaskFilter{})
	suite.Require().NoError(err)
	suite.Require().Len(list, 1)

	failing := suite.failingService(false, true)
	err = failing.DeleteTask(context.Background(), suite.ownerID, task.ID)
	suite.Require().Error(err)

	// The cached list regained the task verbatim.
	store, _ := suite.caches.ForUser(suite.ownerID)
	cached, present := store.Get(cache.TaskListKey(query.TaskFilter{}.Signature()))
	suite.Require().True(present)
	restored := cached.([]dto.TaskDTO)
	suite.Require().Len(restored, 1)
	suite.Equal(task.ID, restored[0].ID)

	// The row survived.
	_, err = suite.taskRepo.FindByID(suite.ownerID, task.ID)
	suite.NoError(err)
}

func (suite *TaskServiceSuite) TestDeleteTask_NotFound() {
	err := suite.service.DeleteTask(context.Background(), suite.ownerID, "missing")
	suite.ErrorIs(err, ErrTaskNotFound)
}

func (suite *TaskServiceSuite) TestDashboardStats() {
	suite.createTask("Open one")
	task := suite.createTask("Finished one")
	_, err := suite.service.SetTaskStatus(context.Background(), suite.ownerID, task.ID, models.TaskStatusDone)
	suite.Require().NoError(err)

	dashboard, stale, err := suite.service.DashboardStats(context.Background(), suite.ownerID)

	suite.Require().NoError(err)
	suite.False(stale)
	suite.Equal(2, dashboard.Total)
	suite.Equal(1, dashboard.Completed)
	suite.Equal(1, dashboard.Todo)
}

func (suite *TaskServiceSuite) TestListProjectTasks() {
	suite.createTask("In project")

	tasks, stale, err := suite.service.ListProjectTasks(context.Background(), suite.ownerID, suite.projectID)

	suite.Require().NoError(err)
	suite.False(stale)
	suite.Len(tasks, 1)
}

func TestTaskServiceSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceSuite))
}
