package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/requestdata"
	"github.com/likenovel/likenovel-backend/internal/services"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type AuthMiddleware struct {
	log      *logger.Logger
	verifier services.TokenVerifier
	users    repos.UserRepo
}

func NewAuthMiddleware(log *logger.Logger, verifier services.TokenVerifier, users repos.UserRepo) *AuthMiddleware {
	return &AuthMiddleware{
		log:      log.With("Middleware", "AuthMiddleware"),
		verifier: verifier,
		users:    users,
	}
}

// RequireAuth rejects the request unless a live access token maps to an
// active local user.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd, err := am.resolve(c)
		if err != nil {
			abort(c, err)
			return
		}
		if rd == nil {
			abort(c, apierr.Unauthorized(apierr.CodeLoginRequired))
			return
		}
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// OptionalAuth resolves the principal when a token is present and lets
// guests through. A present but invalid token is still rejected so a client
// cannot silently degrade to guest personalization.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if extractToken(c) == "" {
			c.Next()
			return
		}
		rd, err := am.resolve(c)
		if err != nil {
			abort(c, err)
			return
		}
		if rd != nil {
			c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		}
		c.Next()
	}
}

// RequireAdmin stacks on RequireAuth.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || rd.AdminYn != types.YnYes {
			abort(c, apierr.New(http.StatusForbidden, apierr.CodeAdminAccountRequired, nil))
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) resolve(c *gin.Context) (*requestdata.RequestData, error) {
	tokenString := extractToken(c)
	if tokenString == "" {
		return nil, nil
	}
	claims, err := am.verifier.Verify(c.Request.Context(), tokenString)
	if err != nil {
		return nil, err
	}
	user, err := am.users.GetByKcUserID(c.Request.Context(), nil, claims.Sub)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.Unauthorized(apierr.CodeNotRegisteredAccount)
	}
	if user.UseYn != types.YnYes {
		return nil, apierr.Forbidden(apierr.CodeWithdrawnAccountAccess)
	}
	adminYn := types.YnNo
	if user.RoleCode == "admin" {
		adminYn = types.YnYes
	}
	return &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      user.ID,
		KcUserID:    user.KcUserID,
		AdultYn:     user.AdultYn,
		AdminYn:     adminYn,
	}, nil
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

func abort(c *gin.Context, err error) {
	ae := apierr.From(err)
	c.AbortWithStatusJSON(ae.Status, gin.H{"error": gin.H{"code": ae.Code, "message": ae.Error()}})
}
