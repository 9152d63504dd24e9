package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pageza/cantine/backend/internal/models"
	"gorm.io/gorm"
)

const tempPasswordLength = 10

// ProfileInput is the self-service part of a profile.
type ProfileInput struct {
	Contact  string `form:"contact" json:"contact" validate:"max=50"`
	Position string `form:"position" json:"position" validate:"max=80"`
	Bio      string `form:"bio" json:"bio"`
}

// ManagedAccount is the account form used by administrators.
type ManagedAccount struct {
	Username  string      `form:"username" json:"username" validate:"required,max=150"`
	Email     string      `form:"email" json:"email" validate:"required,email,max=254"`
	FirstName string      `form:"first_name" json:"first_name" validate:"max=150"`
	LastName  string      `form:"last_name" json:"last_name" validate:"max=150"`
	Role      models.Role `form:"role" json:"role" validate:"required,role"`
	Position  string      `form:"organisation" json:"organisation" validate:"max=80"`
	Contact   string      `form:"telephone" json:"telephone" validate:"max=50"`
	Active    bool        `form:"active" json:"active"`
}

// AccountFilter narrows the managed account listing. Empty fields match all.
type AccountFilter struct {
	Role   models.Role
	Active string
}

// ProfileService handles user profile operations
type ProfileService struct {
	db    *gorm.DB
	media *MediaService
}

func NewProfileService(db *gorm.DB, media *MediaService) *ProfileService {
	return &ProfileService{db: db, media: media}
}

// ensureProfile returns the profile of user, creating it with the default
// role when missing. A concurrent insert is resolved by reading the winner.
func ensureProfile(db *gorm.DB, user *models.User) (*models.UserProfile, error) {
	profile := models.UserProfile{}
	err := createOrReread(db,
		func(sp *gorm.DB) error {
			return sp.Where(models.UserProfile{UserID: user.ID}).
				Attrs(models.UserProfile{Role: models.DefaultRole(user.IsStaff)}).
				FirstOrCreate(&profile).Error
		},
		func(db *gorm.DB) error {
			profile = models.UserProfile{}
			return db.Where("user_id = ?", user.ID).First(&profile).Error
		})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return &profile, nil
}

// EnsureProfile returns the caller's profile with its account preloaded.
// It never fails because the profile is missing.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID uint) (*models.UserProfile, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil, notFound(err)
	}
	profile, err := ensureProfile(db, &user)
	if err != nil {
		return nil, err
	}
	profile.User = &user
	return profile, nil
}

// UpdateOwnProfile applies a self-service edit. Only administrators may
// change their position; other roles keep the stored value.
func (s *ProfileService) UpdateOwnProfile(ctx context.Context, userID uint, in ProfileInput, avatar *Upload) (*models.UserProfile, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	profile, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	oldAvatar := ""
	if avatar != nil {
		key, err := s.media.StoreImage(ctx, fmt.Sprintf("users/%d/avatar", userID), avatar)
		if err != nil {
			return nil, err
		}
		oldAvatar = profile.Avatar
		profile.Avatar = key
	}

	profile.Contact = strings.TrimSpace(in.Contact)
	profile.Bio = in.Bio
	if profile.IsAdmin() {
		profile.Position = strings.TrimSpace(in.Position)
	}

	if err := s.db.WithContext(ctx).Omit("User").Save(profile).Error; err != nil {
		return nil, err
	}
	if oldAvatar != "" {
		_ = s.media.Remove(ctx, oldAvatar)
	}
	return profile, nil
}

// AvatarURL resolves the stored avatar of profile.
func (s *ProfileService) AvatarURL(ctx context.Context, profile *models.UserProfile) string {
	if profile == nil {
		return ""
	}
	return s.media.URL(ctx, profile.Avatar)
}

// ListAccounts lists profiles with their accounts ordered by username.
func (s *ProfileService) ListAccounts(ctx context.Context, filter AccountFilter, page Page) ([]models.UserProfile, PageInfo, error) {
	page = page.normalize()
	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.UserProfile{}).
			Joins("JOIN users ON users.id = user_profiles.user_id")
		if filter.Role.Valid() {
			q = q.Where("user_profiles.role = ?", filter.Role)
		}
		switch filter.Active {
		case "true", "1", "on":
			q = q.Where("users.is_active = ?", true)
		case "false", "0", "off":
			q = q.Where("users.is_active = ?", false)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var profiles []models.UserProfile
	err := query().Preload("User").
		Order("users.username").
		Offset(page.offset()).Limit(page.Size).
		Find(&profiles).Error
	if err != nil {
		return nil, PageInfo{}, err
	}
	return profiles, PageInfo{Number: page.Number, Size: page.Size, Total: total}, nil
}

// GetAccount loads a profile by its ID with the account preloaded.
func (s *ProfileService) GetAccount(ctx context.Context, profileID uint) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.db.WithContext(ctx).Preload("User").First(&profile, profileID).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// CreateManagedAccount creates an account with a generated temporary
// password, which is returned once and never stored in clear.
func (s *ProfileService) CreateManagedAccount(ctx context.Context, in ManagedAccount) (*models.UserProfile, string, error) {
	if err := validateStruct(in); err != nil {
		return nil, "", err
	}
	password, err := RandomPassword(tempPasswordLength)
	if err != nil {
		return nil, "", err
	}

	var user *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = createAccount(tx, NewAccount{
			Username:  in.Username,
			Email:     in.Email,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Password:  password,
			Inactive:  !in.Active,
			Role:      in.Role,
			Contact:   in.Contact,
			Position:  in.Position,
		})
		return err
	})
	if err != nil {
		return nil, "", err
	}
	profile := user.Profile
	user.Profile = nil
	profile.User = user
	return profile, password, nil
}

// UpdateManagedAccount updates both the account and its profile.
func (s *ProfileService) UpdateManagedAccount(ctx context.Context, profileID uint, in ManagedAccount) (*models.UserProfile, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	profile, err := s.GetAccount(ctx, profileID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := profile.User
		user.Username = strings.TrimSpace(in.Username)
		user.Email = strings.TrimSpace(in.Email)
		user.FirstName = in.FirstName
		user.LastName = in.LastName
		user.IsActive = in.Active
		if err := tx.Omit("Profile").Save(user).Error; err != nil {
			if isDuplicate(err) {
				return fieldConflict("username", "A user with that username already exists.")
			}
			return err
		}

		profile.Role = in.Role
		profile.Position = in.Position
		profile.Contact = in.Contact
		return tx.Omit("User").Save(profile).Error
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// DeleteManagedAccount removes the profile and its account.
func (s *ProfileService) DeleteManagedAccount(ctx context.Context, profileID uint) error {
	profile, err := s.GetAccount(ctx, profileID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.UserProfile{}, profile.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, profile.UserID).Error
	})
	if err != nil {
		return err
	}
	if profile.Avatar != "" {
		_ = s.media.Remove(ctx, profile.Avatar)
	}
	return nil
}
