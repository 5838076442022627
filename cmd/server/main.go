package main

import (
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/lmercadier/taskboard/internal/auth"
	"github.com/lmercadier/taskboard/internal/cache"
	"github.com/lmercadier/taskboard/internal/config"
	"github.com/lmercadier/taskboard/internal/database"
	"github.com/lmercadier/taskboard/internal/handlers"
	"github.com/lmercadier/taskboard/internal/middleware"
	"github.com/lmercadier/taskboard/internal/notify"
	"github.com/lmercadier/taskboard/internal/repository"
	"github.com/lmercadier/taskboard/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Initialize the per-user cache registry and the principal store
	caches := cache.NewRegistry()
	defer caches.Close()

	principals := auth.NewStore()
	defer principals.Close()

	notifier := notify.LogNotifier{}

	// Initialize services
	authService := services.NewAuthService(userRepo, principals, caches)
	taskService := services.NewTaskService(taskRepo, projectRepo, caches, notifier)
	projectService := services.NewProjectService(projectRepo, taskRepo, caches, notifier)

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware. Redis when configured, cookie store otherwise.
	var store sessions.Store
	if cfg.RedisHost != "" {
		redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
		store, err = redisStore.NewStore(
			10,        // Redis pool size
			"tcp",     // network type
			redisAddr, // Redis address from config
			"",        // password (empty = no password)
			[]byte(cfg.SessionSecret), // authentication key
		)
		if err != nil {
			log.Fatalf("Failed to create Redis store: %v", err)
		}
	} else {
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax (1=Strict, 2=Lax, 3=None)
	})
	r.Use(sessions.Sessions("taskboard_session", store))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	taskHandler := handlers.NewTaskHandler(taskService)
	projectHandler := handlers.NewProjectHandler(projectService, taskService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Taskboard API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.Signup)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Project routes (protected)
		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			projects.GET("", projectHandler.ListProjects)
			projects.POST("", projectHandler.CreateProject)
			projects.GET("/export", projectHandler.ExportProjects)
			projects.GET("/:id", projectHandler.GetProject)
			projects.PATCH("/:id", projectHandler.UpdateProject)
			projects.DELETE("/:id", projectHandler.DeleteProject)
			projects.GET("/:id/stats", projectHandler.GetProjectStats)
			projects.GET("/:id/tasks", projectHandler.ListProjectTasks)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/export", taskHandler.ExportTasks)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.PATCH("/:id/status", taskHandler.SetTaskStatus)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}

		// Dashboard routes (protected)
		dashboard := api.Group("/dashboard")
		dashboard.Use(middleware.RequireAuth())
		{
			dashboard.GET("/stats", taskHandler.DashboardStats)
		}
	}

	// Start server
	log.Printf("Server starting on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
