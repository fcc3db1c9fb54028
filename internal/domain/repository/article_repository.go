package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blog_api/internal/common"
	"blog_api/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

const articleColumns = `id, title, slug, content, author, created_at, updated_at`

type ArticleRepository interface {
	Create(ctx context.Context, article *model.Article) error
	FindByID(ctx context.Context, id string) (*model.Article, error)
	FindBySlug(ctx context.Context, slug string) (*model.Article, error)
	// FindByIDForUpdate loads an article inside tx with a row lock so the
	// ownership check and the subsequent write are one atomic unit.
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Article, error)
	ListOrderByCreatedAtDesc(ctx context.Context) ([]model.Article, error)
	Update(ctx context.Context, tx *sql.Tx, article *model.Article) error
	Delete(ctx context.Context, id string) error
}

type pgArticleRepository struct {
	db *sql.DB
}

func NewPgArticleRepository(db *sql.DB) ArticleRepository {
	return &pgArticleRepository{db: db}
}

func (r *pgArticleRepository) Create(ctx context.Context, a *model.Article) error {
	query := `INSERT INTO articles (id, title, slug, content, author)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.Title, a.Slug, a.Content, a.Author)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("article with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgArticleRepository.Create: %w", err)
	}
	return nil
}

func (r *pgArticleRepository) FindByID(ctx context.Context, id string) (*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`
	return scanArticle(r.db.QueryRowContext(ctx, query, id), "FindByID")
}

func (r *pgArticleRepository) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE slug = $1`
	return scanArticle(r.db.QueryRowContext(ctx, query, slug), "FindBySlug")
}

func (r *pgArticleRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1 FOR UPDATE`
	return scanArticle(tx.QueryRowContext(ctx, query, id), "FindByIDForUpdate")
}

func (r *pgArticleRepository) ListOrderByCreatedAtDesc(ctx context.Context) ([]model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgArticleRepository.ListOrderByCreatedAtDesc: %w", err)
	}
	defer rows.Close()

	articles := []model.Article{}
	for rows.Next() {
		var a model.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Slug, &a.Content, &a.Author, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgArticleRepository.ListOrderByCreatedAtDesc: scan: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgArticleRepository.ListOrderByCreatedAtDesc: rows: %w", err)
	}
	return articles, nil
}

func (r *pgArticleRepository) Update(ctx context.Context, tx *sql.Tx, a *model.Article) error {
	query := `UPDATE articles SET title = $1, content = $2, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $3
	          RETURNING updated_at`

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, a.Title, a.Content, a.ID)
	} else {
		row = r.db.QueryRowContext(ctx, query, a.Title, a.Content, a.ID)
	}
	if err := row.Scan(&a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Row vanished between the lock and the write.
			return common.ErrNotFound
		}
		return fmt.Errorf("pgArticleRepository.Update: %w", err)
	}
	return nil
}

func (r *pgArticleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgArticleRepository.Delete: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgArticleRepository.Delete: rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func scanArticle(row *sql.Row, op string) (*model.Article, error) {
	article := &model.Article{}
	err := row.Scan(
		&article.ID, &article.Title, &article.Slug, &article.Content, &article.Author,
		&article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgArticleRepository.%s: %w", op, err)
	}
	return article, nil
}
