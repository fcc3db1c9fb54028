package service

import (
	"context"
	"database/sql"
	"errors"
	"unicode/utf8"

	"blog_api/internal/common"
	"blog_api/internal/domain/model"
	"blog_api/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const maxTitleLength = 255

// ArticleService orchestrates the article lifecycle. Every mutation takes the
// caller's identity (the authenticated username) as an explicit parameter and
// refuses to touch articles whose recorded author differs from it.
type ArticleService struct {
	articleRepo repository.ArticleRepository
	db          *sql.DB // For transactions
}

func NewArticleService(articleRepo repository.ArticleRepository, db *sql.DB) *ArticleService {
	return &ArticleService{articleRepo: articleRepo, db: db}
}

type AddArticleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateArticleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func validateArticleInput(title, content string) error {
	if title == "" {
		return common.Errorf("title must not be empty: %w", common.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return common.Errorf("title must be at most %d characters: %w", maxTitleLength, common.ErrValidation)
	}
	if content == "" {
		return common.Errorf("content must not be empty: %w", common.ErrValidation)
	}
	return nil
}

// Create persists a new article stamped with the caller as its author. The
// author comes from the verified token, never from the request body.
func (s *ArticleService) Create(ctx context.Context, author string, req AddArticleRequest) (*model.Article, error) {
	if err := validateArticleInput(req.Title, req.Content); err != nil {
		return nil, err
	}

	article := &model.Article{
		ID:      uuid.NewString(),
		Title:   req.Title,
		Slug:    slug.Make(req.Title),
		Content: req.Content,
		Author:  author,
	}

	if err := s.articleRepo.Create(ctx, article); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// Slug collision with an earlier article of the same title.
			article.Slug = article.Slug + "-" + article.ID[:8]
			if retryErr := s.articleRepo.Create(ctx, article); retryErr != nil {
				return nil, common.Errorf("failed to create article: %w", retryErr)
			}
		} else {
			return nil, common.Errorf("failed to create article: %w", err)
		}
	}

	return s.articleRepo.FindByID(ctx, article.ID)
}

// List returns all articles, newest first.
func (s *ArticleService) List(ctx context.Context) ([]model.Article, error) {
	return s.articleRepo.ListOrderByCreatedAtDesc(ctx)
}

func (s *ArticleService) GetByID(ctx context.Context, id string) (*model.Article, error) {
	return s.articleRepo.FindByID(ctx, id)
}

func (s *ArticleService) GetBySlug(ctx context.Context, articleSlug string) (*model.Article, error) {
	return s.articleRepo.FindBySlug(ctx, articleSlug)
}

// Update replaces an article's title and content. The row is locked for the
// duration of the transaction so the ownership check and the write cannot be
// interleaved with a concurrent delete; a row that disappears anyway
// surfaces as not-found.
func (s *ArticleService) Update(ctx context.Context, id, caller string, req UpdateArticleRequest) (*model.Article, error) {
	if err := validateArticleInput(req.Title, req.Content); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	article, err := s.articleRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if article.Author != caller {
		return nil, common.Errorf("only the author may update this article: %w", common.ErrForbidden)
	}

	article.Title = req.Title
	article.Content = req.Content
	if err := s.articleRepo.Update(ctx, tx, article); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}
	return article, nil
}

// Delete removes an article if the caller is its author.
func (s *ArticleService) Delete(ctx context.Context, id, caller string) error {
	article, err := s.articleRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if article.Author != caller {
		return common.Errorf("only the author may delete this article: %w", common.ErrForbidden)
	}
	return s.articleRepo.Delete(ctx, id)
}
