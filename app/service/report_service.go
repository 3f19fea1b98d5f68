package service

import (
	"net/http"

	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportService menyajikan statistik riwayat verifikasi.
type ReportService interface {
	// GetGlobalStatistics:
	// - Admin   : semua riwayat verifikasi (boleh filter ?source=auto|manual)
	// - Learner : hanya riwayat miliknya sendiri
	GetGlobalStatistics(ctx *gin.Context)

	// GetUserStatistics:
	// - Admin   : boleh lihat statistik user manapun
	// - Learner : hanya dirinya sendiri (id harus = claim.userId)
	GetUserStatistics(ctx *gin.Context)
}

type reportService struct {
	reportRepo repository.ReportRepository
}

// NewReportService membuat instance baru reportService.
func NewReportService(reportRepo repository.ReportRepository) ReportService {
	return &reportService{reportRepo: reportRepo}
}

// getUUIDFromContext membantu mengambil uuid.UUID dari gin.Context key tertentu.
func getUUIDFromContext(ctx *gin.Context, key string) (uuid.UUID, bool) {
	if v, ok := ctx.Get(key); ok {
		if id, ok2 := v.(uuid.UUID); ok2 {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (s *reportService) GetGlobalStatistics(ctx *gin.Context) {
	role := ctx.GetString("role")
	filter := repository.ReportFilter{Source: ctx.Query("source")}

	switch role {
	case utils.RoleAdmin:
		// admin: filter kosong → semua data

	case utils.RoleLearner:
		userID, ok := getUUIDFromContext(ctx, "userID")
		if !ok || userID == uuid.Nil {
			ctx.JSON(http.StatusUnauthorized,
				utils.BuildResponseFailed("Autentikasi tidak valid", "no_user_id", nil))
			return
		}
		filter.UserIDs = []string{userID.String()}

	default:
		ctx.JSON(http.StatusForbidden,
			utils.BuildResponseFailed("Role tidak diizinkan mengakses statistik", "forbidden_role", nil))
		return
	}

	stats, err := s.reportRepo.GetStatistics(ctx.Request.Context(), filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError,
			utils.BuildResponseFailed("Gagal menghitung statistik verifikasi", err.Error(), nil))
		return
	}

	ctx.JSON(http.StatusOK,
		utils.BuildResponseSuccess("Berhasil mengambil statistik verifikasi", stats))
}

func (s *reportService) GetUserStatistics(ctx *gin.Context) {
	role := ctx.GetString("role")

	targetID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("ID user tidak valid", err.Error(), nil))
		return
	}

	switch role {
	case utils.RoleAdmin:
		// admin boleh lihat siapa saja

	case utils.RoleLearner:
		claimUserID, ok := getUUIDFromContext(ctx, "userID")
		if !ok || claimUserID == uuid.Nil {
			ctx.JSON(http.StatusUnauthorized,
				utils.BuildResponseFailed("Autentikasi tidak valid", "no_user_id", nil))
			return
		}
		if claimUserID != targetID {
			ctx.JSON(http.StatusForbidden,
				utils.BuildResponseFailed("Anda tidak boleh melihat statistik user lain", "forbidden", nil))
			return
		}

	default:
		ctx.JSON(http.StatusForbidden,
			utils.BuildResponseFailed("Role tidak diizinkan mengakses statistik user", "forbidden_role", nil))
		return
	}

	stats, err := s.reportRepo.GetStatistics(ctx.Request.Context(), repository.ReportFilter{
		UserIDs: []string{targetID.String()},
		Source:  ctx.Query("source"),
	})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError,
			utils.BuildResponseFailed("Gagal menghitung statistik verifikasi user", err.Error(), nil))
		return
	}

	ctx.JSON(http.StatusOK,
		utils.BuildResponseSuccess("Berhasil mengambil statistik verifikasi user", stats))
}
