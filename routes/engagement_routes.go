package routes

import (
	"net/http"
	"time"

	"credential-engagement-backend/app/service"
	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
)

// EngagementHandler menangani profil engagement, streak dan katalog skill.
type EngagementHandler struct {
	profiles service.ProfileService
	streaks  service.StreakService
	now      func() time.Time
}

func NewEngagementHandler(profiles service.ProfileService, streaks service.StreakService, now func() time.Time) *EngagementHandler {
	if now == nil {
		now = time.Now
	}
	return &EngagementHandler{profiles: profiles, streaks: streaks, now: now}
}

func (h *EngagementHandler) SetupEngagementRoutes(r *gin.Engine, mw ...gin.HandlerFunc) {
	g := r.Group("/api/v1/engagement")
	g.Use(mw...)
	{
		g.POST("/touch", h.Touch)
		g.GET("/profile", h.Profile)
		g.GET("/skills", h.Skills)
	}
}

// Touch mencatat aktivitas hari ini secara eksplisit (misal saat aplikasi dibuka).
func (h *EngagementHandler) Touch(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	res, err := h.streaks.Touch(ctx.Request.Context(), userID, h.now())
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Aktivitas tercatat", res))
}

func (h *EngagementHandler) Profile(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	profile, err := h.profiles.GetProfile(ctx.Request.Context(), userID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Profil engagement", profile))
}

func (h *EngagementHandler) Skills(ctx *gin.Context) {
	skills, err := h.profiles.ListSkills(ctx.Request.Context())
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Katalog skill", skills))
}
