package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"streamhub/internal/auth"
	"streamhub/internal/models"
	"streamhub/internal/store"
)

const (
	// AccessTokenCookie is checked before the Authorization header.
	AccessTokenCookie = "accessToken"

	userKey   = "user"
	userIDKey = "userId"
)

// AuthGuard authenticates the caller from the access-token cookie or a
// Bearer header, loads the public identity for the token's subject and
// attaches it to the request context. It has no other side effect.
func AuthGuard(accessSecret string, users store.UserStore) gin.HandlerFunc {
	secret := []byte(accessSecret)

	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			log.Println("[AUTH] [ERROR] missing token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := auth.Verify(tokenString, auth.AccessToken, secret)
		if err != nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.Subject)
		if err != nil {
			log.Println("[AUTH] [ERROR] invalid subject claim")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		user, err := users.FindUserByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Println("[AUTH] [ERROR] token subject no longer exists:", claims.Subject)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
			log.Println("[AUTH] [ERROR] user lookup failed:", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(userKey, user.Public())
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// extractToken prefers the cookie; a request carrying both uses the cookie.
func extractToken(c *gin.Context) string {
	if value, err := c.Cookie(AccessTokenCookie); err == nil {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}

	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// CurrentUser returns the identity the guard attached.
func CurrentUser(c *gin.Context) (models.PublicUser, bool) {
	value, ok := c.Get(userKey)
	if !ok {
		return models.PublicUser{}, false
	}
	user, ok := value.(models.PublicUser)
	return user, ok
}

// CurrentUserID returns the authenticated subject's ID.
func CurrentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok
}
