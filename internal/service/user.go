package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/mailer"
	"github.com/Skotchmaster/storefront/internal/media"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	resetTokenTTL = 15 * time.Minute
	avatarWidth   = 150
)

type UserService struct {
	Repo        *repo.GormRepo
	Images      media.ImageHost
	Mailer      mailer.Mailer
	Events      events.Publisher
	JWTSecret   []byte
	JWTExpire   time.Duration
	FrontendURL string
	Now         func() time.Time
}

// Session is an issued access token with the user it belongs to.
type Session struct {
	User    *models.User
	Token   string
	Expires time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *UserService) issue(u *models.User) (*Session, error) {
	exp := nowOr(s.Now).Add(s.JWTExpire)
	tok, err := tokens.CreateAccessToken(s.JWTSecret, u.Role, u.ID.String(), exp)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{User: u, Token: tok, Expires: exp}, nil
}

func (s *UserService) uploadAvatar(ctx context.Context, file string) (models.Image, error) {
	return s.Images.Upload(ctx, file, media.FolderAvatars, media.UploadOptions{Width: avatarWidth})
}

func (s *UserService) Register(ctx context.Context, req transport.RegisterRequest) (*Session, error) {
	pw, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: pw,
		Role:         models.RoleUser,
	}
	if req.Avatar != "" {
		if u.Avatar, err = s.uploadAvatar(ctx, req.Avatar); err != nil {
			return nil, err
		}
	}

	if err := s.Repo.CreateUser(ctx, u); err != nil {
		if u.Avatar.PublicID != "" {
			if derr := s.Images.Delete(ctx, u.Avatar.PublicID); derr != nil {
				logging.FromContext(ctx).Warn("discard_avatar_failed", "public_id", u.Avatar.PublicID, "error", derr)
			}
		}
		return nil, err
	}

	publish(ctx, s.Events, events.TopicUsers, u.ID.String(), events.UserRegistered, nowOr(s.Now), map[string]any{
		"user_id": u.ID, "email": u.Email,
	})
	return s.issue(u)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: please enter email and password", apperr.ErrValidation)
	}
	u, err := s.Repo.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)
		}
		return nil, err
	}
	if !hash.CheckPassword(u.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)
	}
	return s.issue(u)
}

// ForgotPassword stores a short lived reset token and mails the reset link.
// If the mail cannot be sent the token is removed again.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.Repo.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	if err := s.Repo.SetResetToken(ctx, u.ID, hashResetToken(token), nowOr(s.Now).Add(resetTokenTTL)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/password/reset/%s", strings.TrimRight(s.FrontendURL, "/"), token)
	err = s.Mailer.Send(ctx, mailer.Message{
		To:      u.Email,
		Subject: "Storefront Password Recovery",
		Body: fmt.Sprintf("Your password reset token is:\n\n%s\n\n"+
			"If you have not requested this email, then ignore it.", link),
	})
	if err != nil {
		if cerr := s.Repo.ClearResetToken(ctx, u.ID); cerr != nil {
			logging.FromContext(ctx).Error("clear_reset_token_failed", "user_id", u.ID, "error", cerr)
		}
		if apperr.HasKind(err) {
			return err
		}
		return fmt.Errorf("%w: send reset mail: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, token string, req transport.ResetPasswordRequest) (*Session, error) {
	u, err := s.Repo.FindUserByResetToken(ctx, hashResetToken(token), nowOr(s.Now))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: reset password token is invalid or has expired", apperr.ErrValidation)
		}
		return nil, err
	}
	if req.Password != req.ConfirmPassword {
		return nil, fmt.Errorf("%w: password does not match", apperr.ErrValidation)
	}

	pw, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.Repo.ResetPassword(ctx, u.ID, pw); err != nil {
		return nil, err
	}
	u.PasswordHash = pw
	u.ResetPasswordToken = nil
	u.ResetPasswordExpire = nil
	return s.issue(u)
}

func (s *UserService) Me(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.Repo.GetUser(ctx, id)
}

func (s *UserService) UpdatePassword(ctx context.Context, id uuid.UUID, req transport.UpdatePasswordRequest) (*Session, error) {
	u, err := s.Repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !hash.CheckPassword(u.PasswordHash, req.OldPassword) {
		return nil, fmt.Errorf("%w: old password is incorrect", apperr.ErrValidation)
	}
	if req.NewPassword != req.ConfirmPassword {
		return nil, fmt.Errorf("%w: password does not match", apperr.ErrValidation)
	}

	if u.PasswordHash, err = hash.HashPassword(req.NewPassword); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.Repo.UpdateUser(ctx, u, "password_hash"); err != nil {
		return nil, err
	}
	return s.issue(u)
}

// UpdateProfile changes name and email. A new avatar replaces the stored one.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, req transport.UpdateProfileRequest) (*models.User, error) {
	u, err := s.Repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(req.Name)
	u.Email = normalizeEmail(req.Email)
	columns := []string{"name", "email"}

	old := u.Avatar
	if req.Avatar != "" {
		img, err := s.uploadAvatar(ctx, req.Avatar)
		if err != nil {
			return nil, err
		}
		u.Avatar = img
		columns = append(columns, "avatar_public_id", "avatar_url")
	}

	if err := s.Repo.UpdateUser(ctx, u, columns...); err != nil {
		if u.Avatar.PublicID != old.PublicID {
			if derr := s.Images.Delete(ctx, u.Avatar.PublicID); derr != nil {
				logging.FromContext(ctx).Warn("discard_avatar_failed", "public_id", u.Avatar.PublicID, "error", derr)
			}
		}
		return nil, err
	}

	if req.Avatar != "" && old.PublicID != "" {
		if err := s.Images.Delete(ctx, old.PublicID); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.Repo.ListUsers(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.Repo.GetUser(ctx, id)
}

func (s *UserService) AdminUpdateUser(ctx context.Context, id uuid.UUID, req transport.AdminUpdateUserRequest) (*models.User, error) {
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, req.Role)
	}
	u, err := s.Repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(req.Name)
	u.Email = normalizeEmail(req.Email)
	u.Role = req.Role
	if err := s.Repo.UpdateUser(ctx, u, "name", "email", "role"); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	u, err := s.Repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.Avatar.PublicID != "" {
		if err := s.Images.Delete(ctx, u.Avatar.PublicID); err != nil {
			return err
		}
	}
	if err := s.Repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.Events, events.TopicUsers, id.String(), events.UserDeleted, nowOr(s.Now), map[string]any{"user_id": id})
	return nil
}
