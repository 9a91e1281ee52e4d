package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"streamhub/internal/middleware"
	"streamhub/internal/session"
)

type RegisterRequest struct {
	Username string `json:"username" form:"username" binding:"required,min=3"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	FullName string `json:"fullName" form:"fullName" binding:"required"`
	Password string `json:"password" form:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

const refreshTokenCookie = "refreshToken"

// CookieOptions controls token-pair cookie delivery. Cookies are always
// httpOnly and secure so script-level code cannot read them; the pair is
// also returned in the JSON body, and clients use one or the other.
type CookieOptions struct {
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func setAuthCookies(c *gin.Context, pair *session.TokenPair, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, int(opts.AccessTTL.Seconds()), "/", opts.Domain, true, true)
	c.SetCookie(refreshTokenCookie, pair.RefreshToken, int(opts.RefreshTTL.Seconds()), "/", opts.Domain, true, true)
}

func clearAuthCookies(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", opts.Domain, true, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", opts.Domain, true, true)
}

// Register creates an account from a JSON body or a multipart form. The
// multipart form may carry optional avatar and coverImage files, which go
// through the blob-storage collaborator before the account is created.
func Register(sessions *session.Manager, uploads Uploader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		multipart := strings.HasPrefix(c.ContentType(), "multipart/form-data")

		var err error
		if multipart {
			err = c.ShouldBind(&req)
		} else {
			err = c.ShouldBindJSON(&req)
		}
		if err != nil {
			respondValidationError(c, err)
			return
		}

		params := session.RegisterParams{
			Username: strings.ToLower(strings.TrimSpace(req.Username)),
			Email:    strings.ToLower(strings.TrimSpace(req.Email)),
			FullName: strings.TrimSpace(req.FullName),
			Password: req.Password,
		}

		var uploadedIDs []string
		if multipart && uploads != nil {
			if url, id, ok := uploadFormFile(c, uploads, "avatar"); ok {
				params.Avatar = url
				uploadedIDs = append(uploadedIDs, id)
			}
			if url, id, ok := uploadFormFile(c, uploads, "coverImage"); ok {
				params.CoverImage = url
				uploadedIDs = append(uploadedIDs, id)
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := sessions.Register(ctx, params)
		if err != nil {
			for _, id := range uploadedIDs {
				if removeErr := uploads.Remove(c.Request.Context(), id); removeErr != nil {
					log.Println("[AUTH] [ERROR] upload cleanup failed:", removeErr)
				}
			}
			respondError(c, "AUTH", err)
			return
		}

		log.Println("[AUTH] [INFO] user registered:", user.Username)
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

func uploadFormFile(c *gin.Context, uploads Uploader, field string) (url, id string, ok bool) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", "", false
	}

	url, id, err = uploads.Upload(c.Request.Context(), file)
	if err != nil {
		log.Printf("[AUTH] [ERROR] %s upload failed: %v", field, err)
		return "", "", false
	}
	return url, id, true
}

func Login(sessions *session.Manager, cookies CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		identifier := strings.TrimSpace(req.Username)
		if identifier == "" {
			identifier = strings.TrimSpace(req.Email)
		}
		if identifier == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username or email is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, pair, err := sessions.Login(ctx, identifier, req.Password)
		if err != nil {
			respondError(c, "AUTH", err)
			return
		}

		log.Println("[AUTH] [INFO] login succeeded:", user.Username)
		setAuthCookies(c, pair, cookies)
		c.JSON(http.StatusOK, gin.H{
			"user":         user,
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
			"expiresIn":    pair.ExpiresIn,
		})
	}
}

// Refresh rotates the session. The presented token comes from the refresh
// cookie or, failing that, the JSON body.
func Refresh(sessions *session.Manager, cookies CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := ""
		if value, err := c.Cookie(refreshTokenCookie); err == nil {
			presented = strings.TrimSpace(value)
		}
		if presented == "" {
			var req RefreshRequest
			if err := c.ShouldBindJSON(&req); err == nil {
				presented = strings.TrimSpace(req.RefreshToken)
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, pair, err := sessions.Refresh(ctx, presented)
		if err != nil {
			respondError(c, "AUTH", err)
			return
		}

		setAuthCookies(c, pair, cookies)
		c.JSON(http.StatusOK, gin.H{
			"user":         user,
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
			"expiresIn":    pair.ExpiresIn,
		})
	}
}

func Logout(sessions *session.Manager, cookies CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.CurrentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := sessions.Logout(ctx, userID); err != nil {
			respondError(c, "AUTH", err)
			return
		}

		clearAuthCookies(c, cookies)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func ChangePassword(sessions *session.Manager, cookies CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.CurrentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := sessions.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
			respondError(c, "AUTH", err)
			return
		}

		// The session was invalidated along with the old password.
		clearAuthCookies(c, cookies)
		c.JSON(http.StatusOK, gin.H{"message": "password changed, please log in again"})
	}
}

func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
