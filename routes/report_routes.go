package routes

import (
	"credential-engagement-backend/app/service"

	"github.com/gin-gonic/gin"
)

// ReportRoutes mendaftarkan endpoint statistik verifikasi.
func ReportRoutes(r *gin.Engine, s service.ReportService, auth gin.HandlerFunc) {
	g := r.Group("/api/v1/reports")
	g.Use(auth)
	{
		// Admin   → semua riwayat verifikasi
		// Learner → riwayat miliknya sendiri
		// GET /api/v1/reports/statistics?source=auto|manual
		g.GET("/statistics", s.GetGlobalStatistics)

		// GET /api/v1/reports/users/:id
		g.GET("/users/:id", s.GetUserStatistics)
	}
}
