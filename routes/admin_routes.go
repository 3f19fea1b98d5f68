package routes

import (
	"credential-engagement-backend/app/service"
	"credential-engagement-backend/middleware"

	"github.com/gin-gonic/gin"
)

// AdminRoutes: semua endpoint wajib JWT + role admin.
func AdminRoutes(r *gin.Engine, s service.AdminService, auth gin.HandlerFunc) {
	admin := r.Group("/api/v1/admin")
	admin.Use(auth, middleware.RequireAdmin())
	{
		admin.POST("/users", s.CreateUser)
		admin.GET("/users/:id", s.GetUserDetail)
		admin.POST("/users/:id/token", s.IssueToken)
		admin.POST("/users/:id/points", s.AdjustPoints)

		admin.POST("/certificates/:id/review", s.ReviewCertificate)

		admin.GET("/issuers", s.ListIssuers)
		admin.PUT("/issuers", s.UpsertIssuer)
	}
}
