package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/types"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewAccount holds what is needed to create an account. Role overrides the
// default role derived from IsStaff when set.
type NewAccount struct {
	Username  string      `json:"username" form:"username" validate:"required,max=150"`
	Email     string      `json:"email" form:"email" validate:"omitempty,email,max=254"`
	FirstName string      `json:"first_name" form:"first_name" validate:"max=150"`
	LastName  string      `json:"last_name" form:"last_name" validate:"max=150"`
	Password  string      `json:"password" form:"password" validate:"required,min=8"`
	IsStaff   bool        `json:"is_staff" form:"is_staff"`
	Inactive  bool        `json:"-" form:"-"`
	Role      models.Role `json:"role" form:"role" validate:"omitempty,role"`
	Contact   string      `json:"contact" form:"contact" validate:"max=50"`
	Position  string      `json:"position" form:"position" validate:"max=80"`
}

type AccountOption func(*AccountService)

// WithTokenTTL sets the lifetime of access and refresh tokens.
func WithTokenTTL(access, refresh time.Duration) AccountOption {
	return func(s *AccountService) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

// WithTokenStore enables refresh-token rotation.
func WithTokenStore(store TokenStore) AccountOption {
	return func(s *AccountService) { s.tokens = store }
}

func WithAccountClock(c Clock) AccountOption {
	return func(s *AccountService) { s.now = defaultClock(c) }
}

type AccountService struct {
	db         *gorm.DB
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     TokenStore
	now        Clock
}

func NewAccountService(db *gorm.DB, jwtSecret string, opts ...AccountOption) *AccountService {
	s := &AccountService{
		db:         db,
		jwtSecret:  jwtSecret,
		accessTTL:  30 * time.Minute,
		refreshTTL: 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount creates the account and its profile in one transaction.
func (s *AccountService) CreateAccount(ctx context.Context, in NewAccount) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = createAccount(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func createAccount(tx *gorm.DB, in NewAccount) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hashedPassword),
		IsStaff:      in.IsStaff,
		IsActive:     !in.Inactive,
	}
	if err := tx.Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, fieldConflict("username", "A user with that username already exists.")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	role := models.DefaultRole(in.IsStaff)
	if in.Role != "" {
		role = in.Role
	}
	profile := models.UserProfile{
		UserID:   user.ID,
		Role:     role,
		Contact:  in.Contact,
		Position: in.Position,
	}
	if err := tx.Create(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	user.Profile = &profile
	return &user, nil
}

// Authenticate checks a username (or e-mail) and password pair.
func (s *AccountService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	db := s.db.WithContext(ctx)
	var user models.User
	err := db.Where("username = ?", login).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && strings.Contains(login, "@") {
		err = db.Where("LOWER(email) = ?", strings.ToLower(login)).First(&user).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	now := s.now()
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	user.LastLogin = &now

	profile, err := ensureProfile(db, &user)
	if err != nil {
		return nil, err
	}
	user.Profile = profile
	return &user, nil
}

// GetUser loads an account with its profile.
func (s *AccountService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&user, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Summary builds the caller summary returned by the API.
func Summary(user *models.User) types.UserSummary {
	summary := types.UserSummary{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(models.RoleProvider),
	}
	if user.Profile != nil {
		summary.Role = string(user.Profile.Role)
		summary.Contact = user.Profile.Contact
		summary.Position = user.Profile.Position
	}
	return summary
}

// IssueTokens returns a signed access/refresh pair for user.
func (s *AccountService) IssueTokens(user *models.User) (*types.TokenPair, error) {
	role := ""
	if user.Profile != nil {
		role = string(user.Profile.Role)
	}
	access, err := s.generateToken(user, role, types.AccessToken, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.generateToken(user, role, types.RefreshToken, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &types.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *AccountService) generateToken(user *models.User, role, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &types.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    user.ID,
		Username:  user.Username,
		Role:      role,
		TokenType: tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AccountService) parseToken(tokenString string) (*types.TokenClaims, error) {
	claims := &types.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken accepts access tokens only.
func (s *AccountService) ValidateToken(tokenString string) (*types.TokenClaims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != types.AccessToken {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair. With a token store the
// presented token is revoked so it cannot be replayed.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*types.TokenPair, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != types.RefreshToken {
		return nil, ErrInvalidToken
	}

	if s.tokens != nil {
		revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	user, err := s.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if s.tokens != nil && claims.ExpiresAt != nil {
		if err := s.tokens.Revoke(ctx, claims.ID, claims.ExpiresAt.Sub(s.now())); err != nil {
			return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
		}
	}
	return s.IssueTokens(user)
}

const passwordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomPassword returns a password of length n drawn from an alphabet
// without look-alike characters.
func RandomPassword(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[idx.Int64()]
	}
	return string(b), nil
}
