package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/splitta/splitta/pkg/splitta/activity"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/categories"
	"github.com/splitta/splitta/pkg/splitta/database"
	"github.com/splitta/splitta/pkg/splitta/expenses"
	"github.com/splitta/splitta/pkg/splitta/groups"
	"github.com/splitta/splitta/pkg/splitta/logging"
	"github.com/splitta/splitta/pkg/splitta/models"
	"github.com/splitta/splitta/pkg/splitta/payments"
	"github.com/splitta/splitta/pkg/splitta/users"
)

// @title Splitta API
// @version 1.0
// @description A group expense-sharing ledger: groups, expenses, splits, and settlement payments.

// @license.name MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logging.Init()

	// Get database path from environment or use default
	dbPath := os.Getenv("SPLITTA_DB_PATH")
	if dbPath == "" {
		dbPath = "splitta.db"
	}

	// Connect to database
	if err := database.Connect(dbPath); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	logrus.Info("Database migrations completed")

	// Set up Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "splitta",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(database.GetDB())
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Everything below requires an authenticated caller; there is no
		// anonymous fallback identity
		authRequired := auth.AuthMiddleware()

		// User profile routes
		usersHandler := users.NewHandler(database.GetDB())
		usersHandler.RegisterRoutes(api.Group("/users", authRequired))

		// Groups routes (group CRUD, roster, chat)
		groupsHandler := groups.NewHandler(database.GetDB())
		groupsHandler.RegisterRoutes(api.Group("/groups", authRequired))
		groupsHandler.RegisterMemberRoutes(api.Group("/group-members", authRequired))

		// Expenses and splits routes
		expensesHandler := expenses.NewHandler(database.GetDB())
		expensesHandler.RegisterRoutes(api.Group("/expenses", authRequired))
		expensesHandler.RegisterSplitRoutes(api.Group("/splits", authRequired))

		// Payments routes
		paymentsHandler := payments.NewHandler(database.GetDB())
		paymentsHandler.RegisterRoutes(api.Group("/payments", authRequired))

		// Categories routes
		categoriesHandler := categories.NewHandler(database.GetDB())
		categoriesHandler.RegisterRoutes(api.Group("/categories", authRequired))

		// Activity log and notification routes
		activityHandler := activity.NewHandler(database.GetDB())
		activityHandler.RegisterRoutes(api.Group("", authRequired))
	}

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logrus.WithField("port", port).Info("Starting splitta server")
	if err := r.Run(":" + port); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}
