package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	db := r.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
		return translate(err, "check email")
	}
	if n > 0 {
		return fmt.Errorf("%w: email already registered", apperr.ErrConflict)
	}
	return translate(db.Create(u).Error, "user")
}

func (r *GormRepo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("user %s", id))
	}
	return &u, nil
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (r *GormRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.DB.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, translate(err, "list users")
	}
	return users, nil
}

// UpdateUser writes the named columns of u.
func (r *GormRepo) UpdateUser(ctx context.Context, u *models.User, columns ...string) error {
	db := r.DB.WithContext(ctx)
	for _, c := range columns {
		if c != "email" {
			continue
		}
		var n int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", u.Email, u.ID).Count(&n).Error; err != nil {
			return translate(err, "check email")
		}
		if n > 0 {
			return fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
	}

	res := db.Model(&models.User{}).Where("id = ?", u.ID).Select(columns).Updates(u)
	if res.Error != nil {
		return translate(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, u.ID)
	}
	return nil
}

func (r *GormRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "delete user")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
	}
	return nil
}

func (r *GormRepo) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expire time.Time) error {
	return r.updateReset(ctx, id, &tokenHash, &expire)
}

func (r *GormRepo) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	return r.updateReset(ctx, id, nil, nil)
}

func (r *GormRepo) updateReset(ctx context.Context, id uuid.UUID, tokenHash *string, expire *time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"reset_password_token": tokenHash, "reset_password_expire": expire})
	if res.Error != nil {
		return translate(res.Error, "update reset token")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
	}
	return nil
}

// FindUserByResetToken returns the user owning an unexpired reset token.
func (r *GormRepo) FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	var u models.User
	err := r.DB.WithContext(ctx).
		Where("reset_password_token = ? AND reset_password_expire > ?", tokenHash, now).
		First(&u).Error
	if err != nil {
		return nil, translate(err, "reset token")
	}
	return &u, nil
}

// ResetPassword stores the new hash and drops the reset token.
func (r *GormRepo) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"password_hash":         passwordHash,
				"reset_password_token":  nil,
				"reset_password_expire": nil,
			})
		if res.Error != nil {
			return translate(res.Error, "reset password")
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
		}
		return nil
	})
}
