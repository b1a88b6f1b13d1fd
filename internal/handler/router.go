package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-select-api/internal/middleware"
	"github.com/noah-isme/course-select-api/internal/models"
	"github.com/noah-isme/course-select-api/internal/service"
)

// Router bundles the handlers mounted on the gin engine.
type Router struct {
	Auth        *AuthHandler
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
	Metrics     *MetricsHandler
	AuthService *service.AuthService
}

// Register mounts all API routes under the given prefix. Catalog
// browsing is public; enrollment endpoints require a student token.
func (rt *Router) Register(r *gin.Engine, prefix string) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/register", rt.Auth.Register)
	auth.POST("/login", rt.Auth.Login)

	courses := api.Group("/courses")
	courses.GET("", rt.Courses.List)
	courses.GET("/:id", rt.Courses.Get)

	enrollments := api.Group("/enrollments",
		middleware.JWT(rt.AuthService),
		middleware.RequireRoles(models.RoleStudent),
	)
	enrollments.GET("", rt.Enrollments.List)
	enrollments.POST("", rt.Enrollments.Create)
	enrollments.DELETE("/:id", rt.Enrollments.Delete)
	enrollments.GET("/conflict-check", rt.Enrollments.ConflictCheck)
	enrollments.GET("/schedule", rt.Enrollments.Schedule)
	enrollments.GET("/export", rt.Enrollments.Export)

	if rt.Metrics != nil {
		r.GET("/metrics", rt.Metrics.Prometheus)
	}
}
