package middleware

import (
	"net/http"
	"strings"

	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware memvalidasi JWT dari header Authorization (Bearer token)
// dan menyimpan informasi user (userID, role) ke dalam context.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Ambil header Authorization
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.JSON(http.StatusUnauthorized,
				utils.BuildResponseFailed("Authorization token required", "missing_or_invalid_authorization_header", nil))
			c.Abort()
			return
		}

		// Ambil token string dan trim spasi sisa
		tokenString := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized,
				utils.BuildResponseFailed("Authorization token required", "empty_token", nil))
			c.Abort()
			return
		}

		// Validasi signature + expiry
		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized,
				utils.BuildResponseFailed("Invalid or expired token", err.Error(), nil))
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID) // uuid.UUID
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RequireAdmin dipasang setelah AuthMiddleware untuk grup endpoint khusus admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != utils.RoleAdmin {
			c.JSON(http.StatusForbidden,
				utils.BuildResponseFailed("Hanya admin yang dapat mengakses fitur ini", "forbidden", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
