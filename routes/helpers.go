package routes

import (
	"net/http"

	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// currentUserID mengambil userID yang di-set AuthMiddleware.
func currentUserID(ctx *gin.Context) (uuid.UUID, bool) {
	if v, ok := ctx.Get("userID"); ok {
		if id, ok2 := v.(uuid.UUID); ok2 && id != uuid.Nil {
			return id, true
		}
	}
	ctx.JSON(http.StatusUnauthorized,
		utils.BuildResponseFailed("Autentikasi tidak valid", "no_user_id", nil))
	return uuid.Nil, false
}

// pathID mem-parse parameter path bertipe UUID.
func pathID(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("ID tidak valid", err.Error(), nil))
		return uuid.Nil, false
	}
	return id, true
}

func isAdmin(ctx *gin.Context) bool {
	return ctx.GetString("role") == utils.RoleAdmin
}
