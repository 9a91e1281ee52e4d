package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"streamhub/internal/auth"
	"streamhub/internal/config"
	"streamhub/internal/database"
	"streamhub/internal/handlers"
	"streamhub/internal/middleware"
	"streamhub/internal/session"
	"streamhub/internal/store"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("user index warning: %v", err)
	}

	users := store.NewMongoStore(db)
	hasher := auth.NewHasher(config.AppEnv.BcryptCost)
	sessions := session.NewManager(
		users,
		hasher,
		config.AppEnv.AccessTokenSecret,
		config.AppEnv.RefreshTokenSecret,
		config.AppEnv.AccessTokenTTL,
		config.AppEnv.RefreshTokenTTL,
	)

	cookies := handlers.CookieOptions{
		Domain:     config.AppEnv.CookieDomain,
		AccessTTL:  config.AppEnv.AccessTokenTTL,
		RefreshTTL: config.AppEnv.RefreshTokenTTL,
	}
	uploads := handlers.NewLocalStorage("./public", "/public")

	r := gin.Default()
	r.Static("/public", "./public")

	guard := middleware.AuthGuard(config.AppEnv.AccessTokenSecret, users)

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", handlers.Register(sessions, uploads))
		authRoutes.POST("/login", handlers.Login(sessions, cookies))
		authRoutes.POST("/refresh", handlers.Refresh(sessions, cookies))
		authRoutes.POST("/logout", guard, handlers.Logout(sessions, cookies))
		authRoutes.POST("/change-password", guard, handlers.ChangePassword(sessions, cookies))
		authRoutes.GET("/me", guard, handlers.GetMe())
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
