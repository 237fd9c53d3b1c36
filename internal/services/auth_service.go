package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password too short (min 12)")
)

const minPasswordLength = 12

type AuthService struct {
	database *gorm.DB
}

func NewAuthService(database *gorm.DB) *AuthService {
	return &AuthService{
		database: database,
	}
}

func (as *AuthService) Authenticate(ctx context.Context, email string, password string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := gorm.G[model.User](as.database).Where("email = ?", email).First(ctx)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// ChangePassword verifies the current password, stores the new one and
// clears the forced change flag.
func (as *AuthService) ChangePassword(ctx context.Context, userID int64, current string, next string) (model.User, error) {
	if len(next) < minPasswordLength {
		return model.User{}, ErrWeakPassword
	}

	user, err := gorm.G[model.User](as.database).Where("id = ?", userID).First(ctx)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(current)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)

	if err != nil {
		return model.User{}, err
	}

	now := time.Now().UTC()

	err = as.database.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"password_hash":        hash,
		"must_change_password": false,
		"updated_at":           now,
	}).Error

	if err != nil {
		return model.User{}, err
	}

	user.PasswordHash = hash
	user.MustChangePassword = false
	user.UpdatedAt = now
	return user, nil
}

// SeedSuperAdmin creates the first account when the users table is empty. The
// seeded account has to change its password on first login.
func (as *AuthService) SeedSuperAdmin(ctx context.Context, email string, password string) error {
	if email == "" || password == "" {
		return nil
	}

	count, err := gorm.G[model.User](as.database).Count(ctx, "*")

	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = gorm.G[model.User](as.database).Create(ctx, &model.User{
		Email:              strings.ToLower(strings.TrimSpace(email)),
		Name:               "Administrator",
		PasswordHash:       hash,
		Roles:              model.RoleSuperAdmin,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	})

	if err != nil {
		return fmt.Errorf("failed to seed superadmin: %w", err)
	}

	log.Info().Str("email", email).Msg("seeded superadmin account")
	return nil
}
