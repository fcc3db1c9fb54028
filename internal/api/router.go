package api

import (
	"net/http"
	"time"

	"blog_api/internal/api/handler"
	"blog_api/internal/app/service"
	"blog_api/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	articleService *service.ArticleService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies a bearer token if present and puts claims in context. Routes
	// that require authentication additionally use middleware.Authenticator.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 Routes
	r.Route("/api/v1", func(v1 chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(authService)
		v1.Route("/auth", authHandler.RegisterRoutes)

		// Article routes (public reads, authenticated mutations)
		articleHandler := handler.NewArticleHandler(articleService)
		v1.Route("/articles", articleHandler.RegisterRoutes)

		// User routes (authenticated)
		userHandler := handler.NewUserHandler(authService)
		v1.Route("/users", userHandler.RegisterRoutes)
	})

	return r
}
