package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"blog_api/internal/api"
	"blog_api/internal/app/service"
	"blog_api/internal/common"
	"blog_api/internal/common/security"
	"blog_api/internal/domain/model"
	"blog_api/internal/platform/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory fakes ---

type memArticleRepo struct {
	articles map[string]model.Article
}

func (m *memArticleRepo) Create(ctx context.Context, a *model.Article) error {
	for _, existing := range m.articles {
		if existing.Slug == a.Slug {
			return common.Errorf("duplicate slug: %w", common.ErrConflict)
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.articles[a.ID] = *a
	return nil
}

func (m *memArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	a, ok := m.articles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &a, nil
}

func (m *memArticleRepo) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	for _, a := range m.articles {
		if a.Slug == slug {
			copied := a
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memArticleRepo) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Article, error) {
	return m.FindByID(ctx, id)
}

func (m *memArticleRepo) ListOrderByCreatedAtDesc(ctx context.Context) ([]model.Article, error) {
	out := make([]model.Article, 0, len(m.articles))
	for _, a := range m.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memArticleRepo) Update(ctx context.Context, tx *sql.Tx, a *model.Article) error {
	stored, ok := m.articles[a.ID]
	if !ok {
		return common.ErrNotFound
	}
	stored.Title = a.Title
	stored.Content = a.Content
	stored.UpdatedAt = time.Now()
	m.articles[a.ID] = stored
	a.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *memArticleRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.articles[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.articles, id)
	return nil
}

type memUserRepo struct {
	users map[string]model.User // keyed by id
}

func (m *memUserRepo) Create(ctx context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return common.Errorf("duplicate user: %w", common.ErrConflict)
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	return nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copied := u
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (m *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

type memTokenStore struct {
	tokens map[string]string
}

func (m *memTokenStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	m.tokens[token] = userID
	return nil
}

func (m *memTokenStore) Consume(ctx context.Context, token string) (string, error) {
	userID, ok := m.tokens[token]
	if !ok {
		return "", common.Errorf("refresh token unknown or expired: %w", common.ErrUnauthorized)
	}
	delete(m.tokens, token)
	return userID, nil
}

func (m *memTokenStore) Delete(ctx context.Context, token string) error {
	delete(m.tokens, token)
	return nil
}

// --- fixture ---

type fixture struct {
	router      http.Handler
	mock        sqlmock.Sqlmock
	articleRepo *memArticleRepo
	userRepo    *memUserRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	config.AppConfig = &config.Config{
		JWTKey: []byte("router-test-secret"),
		JWTExp: time.Hour,
	}
	security.InitJWT()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	articleRepo := &memArticleRepo{articles: make(map[string]model.Article)}
	userRepo := &memUserRepo{users: make(map[string]model.User)}
	tokens := &memTokenStore{tokens: make(map[string]string)}

	authService := service.NewAuthService(userRepo, tokens, time.Hour)
	articleService := service.NewArticleService(articleRepo, db)

	return &fixture{
		router:      api.NewRouter(authService, articleService),
		mock:        mock,
		articleRepo: articleRepo,
		userRepo:    userRepo,
	}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) tokenFor(t *testing.T, username string) string {
	t.Helper()
	token, err := security.GenerateToken("uid-"+username, username)
	require.NoError(t, err)
	return token
}

func decodeArticle(t *testing.T, rec *httptest.ResponseRecorder) model.Article {
	t.Helper()
	var a model.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	return a
}

// --- tests ---

func TestCreateArticle_Authenticated(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/articles", f.tokenFor(t, "alice"),
		map[string]string{"title": "title", "content": "content"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	article := decodeArticle(t, rec)
	assert.Equal(t, "alice", article.Author, "author comes from the token, not the body")
	assert.Equal(t, "title", article.Title)
	assert.Len(t, f.articleRepo.articles, 1)
}

func TestCreateArticle_WithoutTokenUnauthorized(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/articles", "",
		map[string]string{"title": "title", "content": "content"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.articleRepo.articles)
}

func TestCreateArticle_BodyAuthorIgnored(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/articles", f.tokenFor(t, "alice"),
		map[string]string{"title": "title", "content": "content", "author": "mallory"})

	require.Equal(t, http.StatusCreated, rec.Code)
	article := decodeArticle(t, rec)
	assert.Equal(t, "alice", article.Author)
}

func TestCreateArticle_ValidationError(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/articles", f.tokenFor(t, "alice"),
		map[string]string{"title": "", "content": "content"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndGetArticles(t *testing.T) {
	f := newFixture(t)

	created := decodeArticle(t, f.do(t, http.MethodPost, "/api/v1/articles", f.tokenFor(t, "alice"),
		map[string]string{"title": "title", "content": "content"}))

	rec := f.do(t, http.MethodGet, "/api/v1/articles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "title", list[0].Title)

	rec = f.do(t, http.MethodGet, "/api/v1/articles/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeArticle(t, rec).ID)

	rec = f.do(t, http.MethodGet, "/api/v1/articles/slug/"+created.Slug, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/articles/no-such-id", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateArticle_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)

	created := decodeArticle(t, f.do(t, http.MethodPost, "/api/v1/articles", f.tokenFor(t, "alice"),
		map[string]string{"title": "title", "content": "content"}))

	// bob is rejected
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	rec := f.do(t, http.MethodPut, "/api/v1/articles/"+created.ID, f.tokenFor(t, "bob"),
		map[string]string{"title": "hijacked", "content": "hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "content", f.articleRepo.articles[created.ID].Content)

	// alice succeeds
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	rec = f.do(t, http.MethodPut, "/api/v1/articles/"+created.ID, f.tokenFor(t, "alice"),
		map[string]string{"title": "new title", "content": "new content"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "new title", decodeArticle(t, rec).Title)
	assert.Equal(t, "new content", f.articleRepo.articles[created.ID].Content)
}

func TestDeleteArticle_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)

	created := decodeArticle(t, f.do(t, http.MethodPost, "/api/v1/articles", f.tokenFor(t, "alice"),
		map[string]string{"title": "title", "content": "content"}))

	rec := f.do(t, http.MethodDelete, "/api/v1/articles/"+created.ID, f.tokenFor(t, "bob"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, f.articleRepo.articles, 1)

	rec = f.do(t, http.MethodDelete, "/api/v1/articles/"+created.ID, f.tokenFor(t, "alice"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.articleRepo.articles)

	rec = f.do(t, http.MethodGet, "/api/v1/articles/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignupAndMe(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		map[string]string{"username": "alice", "email": "alice@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	// duplicate email conflicts
	rec = f.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		map[string]string{"username": "alice2", "email": "alice@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, f.userRepo.users, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/users/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestLoginAndRefreshFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		map[string]string{"username": "alice", "email": "alice@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "alice@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = f.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": resp.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	// consumed token cannot be replayed
	rec = f.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var rotated struct {
		RefreshToken string `json:"refresh_token"`
	}
	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "alice@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))

	rec = f.do(t, http.MethodPost, "/api/v1/auth/logout", "",
		map[string]string{"refresh_token": rotated.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
