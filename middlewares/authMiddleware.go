package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hisabworks/hisab_backend/models"
	"github.com/hisabworks/hisab_backend/utils"
)

// AuthMiddleware validates the bearer token and threads the actor identity
// into the request context. Requests without a token pass through
// unauthenticated; model-layer permission checks reject them later.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := models.SetActorInContext(c.Request.Context(), models.Actor{
			Username:    claim.Username,
			Name:        claim.Name,
			Role:        models.UserRole(claim.Role),
			Permissions: claim.Permissions,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
