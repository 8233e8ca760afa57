package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yigit/earlyalert/internal/app/controllers"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/middleware"
	"github.com/yigit/earlyalert/internal/pkg/realtime"
)

// Controllers bundles the handlers mounted by SetupRouter
type Controllers struct {
	Health        *controllers.HealthController
	Students      *controllers.StudentController
	Assessments   *controllers.AssessmentController
	Interventions *controllers.InterventionController
	Notifications *controllers.NotificationController
	Audit         *controllers.AuditController
	Users         *controllers.UserController
	// Realtime is optional; without it the websocket route is not mounted
	Realtime *realtime.Handler
}

// SetupRouter configures all application routes. Capability checks happen
// in the services; RoleRequired only guards the admin-only groups early.
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware) {
	v1 := router.Group("/api/v1")

	v1.GET("/health", c.Health.Health)

	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	students := authenticated.Group("/students")
	{
		students.POST("", c.Students.CreateStudent)
		students.GET("", c.Students.ListStudents)
		students.GET("/:id", c.Students.GetStudent)
		students.DELETE("/:id", c.Students.DeactivateStudent)
		students.PUT("/:id/enrollment", c.Students.UpdateEnrollment)

		students.POST("/:id/assessments", c.Assessments.RecordAssessment)
		students.GET("/:id/assessments", c.Assessments.ListAssessments)
		students.GET("/:id/assessments/current", c.Assessments.GetCurrentAssessment)

		students.GET("/:id/interventions", c.Interventions.ListForStudent)
	}

	interventions := authenticated.Group("/interventions")
	{
		interventions.POST("", c.Interventions.CreateIntervention)
		interventions.POST("/bulk", c.Interventions.BulkCreateInterventions)
		interventions.POST("/requests", c.Interventions.RequestIntervention)
		interventions.GET("/types", c.Interventions.ListTypes)
		interventions.GET("/stats", c.Interventions.Statistics)
		interventions.GET("/:id", c.Interventions.GetIntervention)
		interventions.POST("/:id/transitions", c.Interventions.TransitionIntervention)
		interventions.POST("/:id/follow-up", c.Interventions.ScheduleFollowUp)
		interventions.POST("/:id/follow-ups", c.Interventions.CreateFollowUp)
	}

	advisors := authenticated.Group("/advisors/:id/interventions")
	{
		advisors.GET("", c.Interventions.ListForAdvisor)
		advisors.GET("/pending", c.Interventions.PendingForAdvisor)
		advisors.GET("/overdue", c.Interventions.OverdueForAdvisor)
		advisors.GET("/follow-ups", c.Interventions.FollowUpsDueForAdvisor)
	}

	notifications := authenticated.Group("/notifications")
	{
		notifications.POST("", c.Notifications.Notify)
		notifications.POST("/broadcast", c.Notifications.Broadcast)
		notifications.GET("/unread", c.Notifications.Unread)
		notifications.POST("/read-all", c.Notifications.MarkAllRead)
		notifications.POST("/:id/read", c.Notifications.MarkRead)
	}

	terms := authenticated.Group("/terms")
	{
		terms.GET("", c.Students.ListTerms)
		terms.PUT("/:id", c.Students.UpsertTerm)
	}

	admin := authenticated.Group("")
	admin.Use(authMiddleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/audit", c.Audit.ListRecent)
		admin.GET("/audit/:entityType/:entityId", c.Audit.ListForEntity)
		admin.POST("/users", c.Users.CreateUser)
	}

	// self lookups are allowed, so no role guard here
	authenticated.GET("/users/:id", c.Users.GetUser)

	if c.Realtime != nil {
		ws := router.Group("/ws")
		ws.Use(authMiddleware.JWTAuth())
		ws.GET("/notifications", c.Realtime.HandleConnection)
	}
}
