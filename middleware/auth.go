package middleware

import (
	"net/http"
	"strings"
	"time"

	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/logger"
	"saascribe-platform/utils"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	tokens *auth.TokenManager
	secure bool
}

// NewAuthMiddleware builds the session middleware. Cookies are marked Secure
// when secureCookies is set, which should be the case in release mode.
func NewAuthMiddleware(tokens *auth.TokenManager, secureCookies bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, secure: secureCookies}
}

// RequireAuth resolves the caller from a bearer token or the access_token
// cookie. An expired access token is renewed from a valid refresh_token
// cookie. The user id is stored on the gin context and on the request
// context.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		var claims *auth.Claims
		var err error
		if tokenString != "" {
			claims, err = a.tokens.ValidateAccessToken(c.Request.Context(), tokenString)
		}

		if claims == nil {
			claims = a.refresh(c)
		}

		if claims == nil {
			code, msg := utils.CodeUnauthorized, "Authentication token is required"
			if tokenString != "" || err != nil {
				code, msg = utils.CodeSessionExpired, "Your session has expired. Please log in again."
			}
			utils.AbortWithError(c, http.StatusUnauthorized, code, msg, nil)
			return
		}

		setUser(c, claims)
		c.Next()
	}
}

func (a *AuthMiddleware) refresh(c *gin.Context) *auth.Claims {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		return nil
	}

	ctx := c.Request.Context()
	refreshClaims, err := a.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil
	}

	if err := a.tokens.RevokeToken(ctx, refreshClaims.ID, true); err != nil {
		logger.FromContext(ctx).Warn("failed to revoke refresh token", "error", err)
	}

	pair, err := a.tokens.IssueTokenPair(ctx, refreshClaims.UserID, refreshClaims.Email)
	if err != nil {
		logger.FromContext(ctx).Error("failed to issue token pair", "error", err)
		return nil
	}
	SetSessionCookies(c, pair, a.secure)

	claims, err := a.tokens.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		return nil
	}
	return claims
}

// SetSessionCookies writes the token pair as HttpOnly cookies.
func SetSessionCookies(c *gin.Context, pair *auth.TokenPair, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", pair.AccessToken, int(time.Until(pair.AccessExp).Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", pair.RefreshToken, int(time.Until(pair.RefreshExp).Seconds()), "/", "", secure, true)
}

func setUser(c *gin.Context, claims *auth.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("claims", claims)

	ctx := auth.WithUserID(c.Request.Context(), claims.UserID)
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("user_id", claims.UserID))
	c.Request = c.Request.WithContext(ctx)
}

func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

func ExtractTokenFromHeader(authHeader string) string {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
