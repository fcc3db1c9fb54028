package handler

import (
	"encoding/json"
	"net/http"

	"blog_api/internal/api/middleware"
	"blog_api/internal/app/service"
	"blog_api/internal/common"

	"github.com/go-chi/chi/v5"
)

type ArticleHandler struct {
	articleService *service.ArticleService
}

func NewArticleHandler(as *service.ArticleService) *ArticleHandler {
	return &ArticleHandler{articleService: as}
}

func (h *ArticleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listArticles)                 // GET /api/v1/articles
	r.Get("/{articleID}", h.getArticle)        // GET /api/v1/articles/{id}
	r.Get("/slug/{articleSlug}", h.getBySlug)  // GET /api/v1/articles/slug/my-title

	r.Group(func(authRouter chi.Router) {
		authRouter.Use(middleware.Authenticator)
		authRouter.Post("/", h.createArticle)              // POST   /api/v1/articles
		authRouter.Put("/{articleID}", h.updateArticle)    // PUT    /api/v1/articles/{id}
		authRouter.Delete("/{articleID}", h.deleteArticle) // DELETE /api/v1/articles/{id}
	})
}

func (h *ArticleHandler) createArticle(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCallerFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.AddArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	article, err := h.articleService.Create(r.Context(), caller, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, article)
}

func (h *ArticleHandler) listArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articleService.List(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, articles)
}

func (h *ArticleHandler) getArticle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")

	article, err := h.articleService.GetByID(r.Context(), articleID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, article)
}

func (h *ArticleHandler) getBySlug(w http.ResponseWriter, r *http.Request) {
	articleSlug := chi.URLParam(r, "articleSlug")

	article, err := h.articleService.GetBySlug(r.Context(), articleSlug)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, article)
}

func (h *ArticleHandler) updateArticle(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCallerFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	articleID := chi.URLParam(r, "articleID")

	var req service.UpdateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	article, err := h.articleService.Update(r.Context(), articleID, caller, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, article)
}

func (h *ArticleHandler) deleteArticle(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCallerFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	articleID := chi.URLParam(r, "articleID")

	if err := h.articleService.Delete(r.Context(), articleID, caller); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "article deleted"})
}
