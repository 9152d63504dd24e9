package service

import (
	"context"

	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/types"
)

// IAccountService defines the interface for authentication operations
type IAccountService interface {
	CreateAccount(ctx context.Context, in NewAccount) (*models.User, error)
	Authenticate(ctx context.Context, login, password string) (*models.User, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	IssueTokens(user *models.User) (*types.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*types.TokenPair, error)
	ValidateToken(token string) (*types.TokenClaims, error)
}

// IProfileService resolves the profile of an authenticated caller.
type IProfileService interface {
	EnsureProfile(ctx context.Context, userID uint) (*models.UserProfile, error)
}

var (
	_ IAccountService = (*AccountService)(nil)
	_ IProfileService = (*ProfileService)(nil)
	_ FileStorage     = (*LocalStorage)(nil)
	_ FileStorage     = (*S3Storage)(nil)
	_ TokenStore      = (*RedisTokenStore)(nil)
)
