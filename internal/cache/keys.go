package cache

import "time"

// Key scheme, hierarchical and prefix-composable:
//
//	projects.list
//	projects.detail.<id>
//	projects.stats.<id>
//	tasks.list.<filter-signature>
//	tasks.detail.<id>
//	tasks.byProject.<project_id>
//	tasks.dashboardStats
//
// Each key class has an independent freshness window during which a read
// is served from memory without contacting the store.
const (
	FreshnessProjectList    = 5 * time.Minute
	FreshnessProjectDetail  = 5 * time.Minute
	FreshnessProjectStats   = 2 * time.Minute
	FreshnessTaskList       = 2 * time.Minute
	FreshnessTaskDetail     = 5 * time.Minute
	FreshnessTaskByProject  = 2 * time.Minute
	FreshnessDashboardStats = 1 * time.Minute
)

// TaskListPrefix addresses every filter signature at once: a list cache
// cannot know selectively whether a mutation affects it, so invalidation
// is uniform across the prefix.
const TaskListPrefix = "tasks.list."

// TaskDetailPrefix addresses every cached task detail, for cleanups that
// span tasks (a project delete cascades to its tasks).
const TaskDetailPrefix = "tasks.detail."

func ProjectListKey() string            { return "projects.list" }
func ProjectDetailKey(id string) string { return "projects.detail." + id }
func ProjectStatsKey(id string) string  { return "projects.stats." + id }

func TaskListKey(signature string) string      { return TaskListPrefix + signature }
func TaskDetailKey(id string) string           { return TaskDetailPrefix + id }
func TaskByProjectKey(projectID string) string { return "tasks.byProject." + projectID }
func DashboardStatsKey() string                { return "tasks.dashboardStats" }
