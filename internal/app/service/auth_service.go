package service

import (
	"context"
	"net/mail"
	"time"

	"blog_api/internal/common"
	"blog_api/internal/common/security"
	"blog_api/internal/domain/model"
	"blog_api/internal/domain/repository"
	"blog_api/internal/platform/tokenstore"

	"github.com/google/uuid"
)

type AuthService struct {
	userRepo   repository.UserRepository
	tokens     tokenstore.RefreshTokenStore
	refreshTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, tokens tokenstore.RefreshTokenStore, refreshTTL time.Duration) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, refreshTTL: refreshTTL}
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	User         *model.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
}

func validateSignup(req SignupRequest) error {
	if req.Username == "" {
		return common.Errorf("username is required: %w", common.ErrValidation)
	}
	if req.Email == "" {
		return common.Errorf("email is required: %w", common.ErrValidation)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return common.Errorf("email is not a valid address: %w", common.ErrValidation)
	}
	if len(req.Password) < 8 {
		return common.Errorf("password must be at least 8 characters: %w", common.ErrValidation)
	}
	return nil
}

// Signup registers a new user and returns a token pair. Email uniqueness is
// pre-checked for a friendly message, but the database UNIQUE constraint is
// authoritative: a concurrent duplicate insert still maps to a conflict.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if err := validateSignup(req); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, common.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, common.Errorf("email is already registered: %w", common.ErrConflict)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, common.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashedPassword,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo maps unique violations to common.ErrConflict
		return nil, common.Errorf("failed to create user: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Login verifies credentials and returns a token pair. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, common.Errorf("invalid email or password: %w", common.ErrUnauthorized)
	}
	if !security.CheckPassword(req.Password, user.HashedPassword) {
		return nil, common.Errorf("invalid email or password: %w", common.ErrUnauthorized)
	}
	return s.issueTokens(ctx, user)
}

// Refresh exchanges a refresh token for a fresh token pair. The presented
// token is consumed, so each refresh token works exactly once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	userID, err := s.tokens.Consume(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, common.Errorf("user for refresh token no longer exists: %w", common.ErrUnauthorized)
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes a refresh token. The access token stays valid until it
// expires; only the refresh path is cut off.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Delete(ctx, refreshToken)
}

func (s *AuthService) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

func (s *AuthService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.userRepo.FindByEmail(ctx, email)
}

func (s *AuthService) issueTokens(ctx context.Context, user *model.User) (*AuthResponse, error) {
	token, err := security.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, common.Errorf("failed to generate token: %w", err)
	}

	refreshToken := uuid.NewString()
	if err := s.tokens.Save(ctx, refreshToken, user.ID, s.refreshTTL); err != nil {
		return nil, common.Errorf("failed to store refresh token: %w", err)
	}

	user.HashedPassword = "" // Clear password before returning
	return &AuthResponse{User: user, Token: token, RefreshToken: refreshToken}, nil
}
