package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/pkg/errors"
	"github.com/charlesng35/staffhub/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxAccountIDKey = "accountID"
	CtxEmailKey     = "accountEmail"
	CtxRoleKey      = "accountRole"
)

// AccessTokenValidator verifies access tokens without touching storage.
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (*iauth.Claims, error)
}

// Auth enforces bearer access-token authentication. Refresh tokens are
// rejected here even though they share the signing key.
func Auth(validator AccessTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := validator.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxAccountIDKey, claims.AccountID())
		c.Set(CtxEmailKey, claims.Email)
		c.Set(CtxRoleKey, claims.Role)

		c.Next()
	}
}

// RequireRole allows the request through only when the authenticated role is one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxAccountIDKey) == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !slices.Contains(roles, models.Role(c.GetString(CtxRoleKey))) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[7:])
	return token, token != ""
}
