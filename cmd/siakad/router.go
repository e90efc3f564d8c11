package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/siakad-api/api/swagger"
	"github.com/noah-isme/siakad-api/internal/middleware"
	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/pkg/config"
	"github.com/noah-isme/siakad-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/siakad-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/siakad-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", a.health.Health)
	r.GET("/ready", a.health.Ready)
	r.GET("/metrics", a.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", a.authH.Login)
	auth.POST("/refresh", a.authH.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleLecturer)
	student := middleware.RequireRoles(models.RoleStudent)

	secured.POST("/auth/logout", a.authH.Logout)
	secured.GET("/auth/me", a.authH.Me)

	secured.POST("/users", admin, a.users.Create)
	secured.GET("/users/:id", admin, a.users.Get)

	terms := secured.Group("/terms")
	terms.GET("", a.terms.List)
	terms.GET("/active", a.terms.GetActive)
	terms.GET("/:id", a.terms.Get)
	terms.POST("", admin, a.terms.Create)
	terms.PUT("/:id", admin, a.terms.Update)
	terms.POST("/:id/activate", admin, a.terms.Activate)
	terms.DELETE("/:id", admin, a.terms.Delete)

	secured.GET("/programs", a.catalog.ListPrograms)
	secured.POST("/programs", admin, a.catalog.CreateProgram)
	secured.GET("/rooms", a.catalog.ListRooms)
	secured.POST("/rooms", admin, a.catalog.CreateRoom)
	secured.GET("/lecturers", staff, a.catalog.ListLecturers)
	secured.POST("/lecturers", admin, a.catalog.CreateLecturer)

	courses := secured.Group("/courses")
	courses.GET("", a.catalog.ListCourses)
	courses.GET("/:id", a.catalog.GetCourse)
	courses.POST("", admin, a.catalog.CreateCourse)
	courses.PUT("/:id", admin, a.catalog.UpdateCourse)
	courses.DELETE("/:id", admin, a.catalog.DeleteCourse)

	sections := secured.Group("/sections")
	sections.GET("", a.catalog.ListSections)
	sections.GET("/:id", a.catalog.GetSection)
	sections.POST("", admin, a.catalog.CreateSection)

	students := secured.Group("/students")
	students.GET("", admin, a.catalog.ListStudents)
	students.POST("", admin, a.catalog.CreateStudent)
	students.GET("/:id", admin, a.catalog.GetStudent)
	students.GET("/:id/schedule", staff, a.records.Schedule)
	students.GET("/:id/khs", staff, a.records.KHS)
	students.GET("/:id/transcript", staff, a.records.Transcript)
	students.GET("/:id/transcript/export", staff, a.records.ExportTranscript)
	students.GET("/:id/attendance", staff, a.records.Attendance)
	students.GET("/:id/attendance/sections/:sectionId", staff, a.records.SectionAttendance)
	students.GET("/:id/gpa", staff, a.records.GPA)

	announcements := secured.Group("/announcements")
	announcements.GET("", a.announcements.List)
	announcements.GET("/:id", a.announcements.Get)
	announcements.POST("", admin, a.announcements.Create)
	announcements.PUT("/:id", admin, a.announcements.Update)
	announcements.DELETE("/:id", admin, a.announcements.Delete)

	enrollments := secured.Group("/enrollments", staff)
	enrollments.GET("", a.enrollments.List)
	enrollments.GET("/:id", a.enrollments.Get)
	enrollments.POST("/:id/approve", a.enrollments.Approve)
	enrollments.POST("/:id/reject", a.enrollments.Reject)
	enrollments.POST("/:id/reopen", a.enrollments.Reopen)

	me := secured.Group("/me")
	me.GET("/notifications", a.notifications.List)
	me.POST("/notifications/:id/read", a.notifications.MarkRead)

	mine := me.Group("", student)
	mine.GET("/krs", a.krs.Current)
	mine.GET("/krs/available", a.krs.Available)
	mine.POST("/krs/sections", a.krs.AddSection)
	mine.DELETE("/krs/lines/:lineId", a.krs.RemoveSection)
	mine.POST("/krs/submit", a.krs.Submit)
	mine.GET("/schedule", a.records.Schedule)
	mine.GET("/khs", a.records.KHS)
	mine.GET("/transcript", a.records.Transcript)
	mine.GET("/transcript/export", a.records.ExportTranscript)
	mine.GET("/attendance", a.records.Attendance)
	mine.GET("/attendance/sections/:sectionId", a.records.SectionAttendance)
	mine.GET("/gpa", a.records.GPA)

	return r
}
