package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blog_api/internal/api"
	"blog_api/internal/app/service"
	"blog_api/internal/common/security"
	"blog_api/internal/domain/repository"
	"blog_api/internal/platform/config"
	"blog_api/internal/platform/database"
	"blog_api/internal/platform/tokenstore"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	database.Migrate()
	fmt.Println("Database connected and migrated.")

	// 4. Initialize Redis
	tokenstore.ConnectRedis()
	defer tokenstore.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	articleRepo := repository.NewPgArticleRepository(database.DB)

	// 6. Initialize Services
	refreshTokens := tokenstore.NewRedisTokenStore(tokenstore.RDB)
	authService := service.NewAuthService(userRepo, refreshTokens, config.AppConfig.RefreshExp)
	articleService := service.NewArticleService(articleRepo, database.DB)

	// 7. Initialize Router & HTTP Server
	router := api.NewRouter(authService, articleService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
