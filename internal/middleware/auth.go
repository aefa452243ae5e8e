package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/internal/utils"
	"github.com/huangang/taskflow/pkg/logger"
	"github.com/huangang/taskflow/pkg/response"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// UserLookup resolves the user a token was issued for.
type UserLookup interface {
	FindUser(id uint) (*models.User, error)
}

// Authenticate resolves the bearer token into an identity when one is
// present and valid. Requests without a usable token continue anonymously;
// AuthRequired decides whether that is acceptable.
func Authenticate(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected bearer token")
			c.Next()
			return
		}

		// the account may have been deleted since the token was issued
		user, err := users.FindUser(claims.UserID)
		if err != nil {
			logger.Debug().Err(err).Uint("user_id", claims.UserID).Msg("token user not found")
			c.Next()
			return
		}

		SetIdentity(c, user)
		c.Next()
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func SetIdentity(c *gin.Context, user *models.User) {
	c.Set(ContextUserID, user.ID)
	c.Set(ContextEmail, user.Email)
	c.Set(ContextRole, user.Role)
}

// AuthRequired rejects anonymous requests with 401.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == 0 {
			response.Unauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// AdminRequired is a middleware that checks for admin role
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != models.RoleAdmin {
			response.Forbidden(c, "admin access required")
			return
		}
		c.Next()
	}
}

// GetUserID gets the current user ID from context, 0 when anonymous
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextEmail)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
