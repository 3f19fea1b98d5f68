package middleware

import (
	"time"

	"credential-engagement-backend/app/service"
	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActivityTracker mencatat aktivitas harian (streak) untuk request yang sudah terautentikasi.
// Gagal mencatat streak tidak menggagalkan request.
func ActivityTracker(streaks service.StreakService, now func() time.Time, log *utils.Logger) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	return func(c *gin.Context) {
		c.Next()

		// hanya request sukses yang dihitung sebagai aktivitas
		if c.Writer.Status() >= 400 {
			return
		}
		raw, ok := c.Get("userID")
		if !ok {
			return
		}
		userID, ok := raw.(uuid.UUID)
		if !ok || userID == uuid.Nil {
			return
		}
		if _, err := streaks.Touch(c.Request.Context(), userID, now()); err != nil {
			log.Warn("streak touch failed", "userId", userID, "error", err)
		}
	}
}
