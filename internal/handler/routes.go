package handler

import "github.com/gin-gonic/gin"

// Handlers groups the API handlers mounted under the versioned prefix.
type Handlers struct {
	Packages *PackageHandler
	Lessons  *LessonHandler
	Payments *PaymentHandler
}

// RegisterRoutes mounts the package, lesson and payment endpoints on api.
func RegisterRoutes(api *gin.RouterGroup, h Handlers) {
	packages := api.Group("/packages")
	packages.POST("", h.Packages.Create)
	packages.GET("/student/:studentId", h.Packages.ListByStudent)
	packages.GET("/:id", h.Packages.Get)
	packages.PUT("/:id", h.Packages.Update)
	packages.DELETE("/:id", h.Packages.Delete)
	packages.PUT("/:id/extend", h.Packages.Extend)
	packages.PUT("/:id/cancel-extension", h.Packages.CancelExtension)
	packages.POST("/:id/recompute", h.Packages.Recompute)
	packages.GET("/:id/statement", h.Packages.Statement)
	packages.GET("/:id/lessons", h.Lessons.ListByPackage)
	packages.POST("/:id/payments", h.Payments.Add)
	packages.GET("/:id/payments", h.Payments.List)
	packages.DELETE("/:id/payments/:paymentId", h.Payments.Delete)

	lessons := api.Group("/lessons")
	lessons.POST("", h.Lessons.Create)
	lessons.POST("/handle-overflow", h.Lessons.ResolveOverflow)
	lessons.GET("/:id", h.Lessons.Get)
	lessons.PUT("/:id", h.Lessons.Update)
	lessons.DELETE("/:id", h.Lessons.Delete)
}
