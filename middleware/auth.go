package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogstreak/config"
	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextRoleKey stores the role claim.
	ContextRoleKey = "role"
	// ContextTokenKey stores the raw bearer token for logout.
	ContextTokenKey = "token"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		tokenString, code, msg := bearerToken(authHeader)
		if code != 0 {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		setIdentity(ctx, claims, tokenString)
		ctx.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if tokenString, code, _ := bearerToken(ctx.GetHeader("Authorization")); code == 0 && !utils.IsTokenBlacklisted(tokenString) {
			if claims, err := utils.ParseToken(tokenString); err == nil {
				setIdentity(ctx, claims, tokenString)
			}
		}
		ctx.Next()
	}
}

// AdminRequired must run after AuthRequired. Admins are users with the admin
// role or listed in AdminUsernames.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !IsAdmin(ctx) {
			utils.Error(ctx, http.StatusForbidden, 40301, "admin only")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// IsAdmin reports whether the authenticated caller has admin rights.
func IsAdmin(ctx *gin.Context) bool {
	if ctx.GetString(ContextRoleKey) == models.RoleAdmin {
		return true
	}
	name := ctx.GetString(ContextUsernameKey)
	if name == "" {
		return false
	}
	for _, admin := range config.Get().AdminUsernames {
		if strings.EqualFold(admin, name) {
			return true
		}
	}
	return false
}

func bearerToken(header string) (string, int, string) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", 40102, "invalid authorization header format"
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", 40103, "empty bearer token"
	}
	return token, 0, ""
}

func setIdentity(ctx *gin.Context, claims *utils.Claims, token string) {
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextRoleKey, claims.Role)
	ctx.Set(ContextTokenKey, token)
}
