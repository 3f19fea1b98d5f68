package routes

import (
	"net/http"
	"strconv"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/service"
	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	leaderboard service.LeaderboardService
}

func NewLeaderboardHandler(leaderboard service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// SetupLeaderboardRoutes:
// GET /api/v1/leaderboard?metric=points&period=weekly&page=1&limit=20
// GET /api/v1/leaderboard/me?metric=points&period=weekly
func (h *LeaderboardHandler) SetupLeaderboardRoutes(r *gin.Engine, mw ...gin.HandlerFunc) {
	g := r.Group("/api/v1/leaderboard")
	g.Use(mw...)
	{
		g.GET("", h.Get)
		g.GET("/me", h.Me)
	}
}

// metric & period default: points / alltime.
func leaderboardKey(ctx *gin.Context) (model.LeaderboardMetric, model.LeaderboardPeriod) {
	metric := model.LeaderboardMetric(ctx.DefaultQuery("metric", string(model.MetricPoints)))
	period := model.LeaderboardPeriod(ctx.DefaultQuery("period", string(model.PeriodAllTime)))
	return metric, period
}

func (h *LeaderboardHandler) Get(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	metric, period := leaderboardKey(ctx)

	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, utils.BuildResponseFailed("Parameter page tidak valid", "invalid_input", nil))
		return
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, utils.BuildResponseFailed("Parameter limit tidak valid", "invalid_input", nil))
		return
	}

	resp, err := h.leaderboard.GetLeaderboard(ctx.Request.Context(), service.LeaderboardQuery{
		Metric: metric,
		Period: period,
		Page:   page,
		Limit:  limit,
		UserID: userID,
	})
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Leaderboard", resp))
}

// Me menghitung rank user langsung dari data terbaru (tanpa snapshot).
func (h *LeaderboardHandler) Me(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	metric, period := leaderboardKey(ctx)
	rank, err := h.leaderboard.UserRank(ctx.Request.Context(), metric, period, userID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Rank user", rank))
}
