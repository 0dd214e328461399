package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/models"
	"github.com/isdelr/accounts-api/internal/notify"
	"github.com/isdelr/accounts-api/internal/repository"
	"github.com/isdelr/accounts-api/internal/validation"
)

// verificationTokenBytes is the entropy of a verification token; the hex
// encoded token is twice as long.
const verificationTokenBytes = 16

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, in validation.CreateInput) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	UpdateSelf(ctx context.Context, id string, in validation.UpdateInput) (models.User, error)
	VerifyEmail(ctx context.Context, id, token string) error
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
}

// UserOptions tunes account creation.
type UserOptions struct {
	BcryptCost      int
	VerificationTTL time.Duration
	// VerificationURL is the base the activation link is built on, without
	// a trailing slash.
	VerificationURL string
}

// UserService provides business logic for user management.
type UserService struct {
	users     repository.UserRepository
	publisher notify.Publisher
	opts      UserOptions
	now       func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(users repository.UserRepository, publisher notify.Publisher, opts UserOptions) *UserService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.VerificationTTL == 0 {
		opts.VerificationTTL = 2 * time.Minute
	}
	return &UserService{
		users:     users,
		publisher: publisher,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser registers an unverified account and publishes its activation
// link. A failed publish is logged and does not fail the registration.
func (s *UserService) CreateUser(ctx context.Context, in validation.CreateInput) (models.User, error) {
	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return models.User{}, common.ErrConflict
	case !errors.Is(err, common.ErrNotFound):
		return models.User{}, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}

	token, err := common.MakeRandHexString(verificationTokenBytes)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	expires := now.Add(s.opts.VerificationTTL)
	user := models.User{
		ID:                uuid.New().String(),
		Email:             in.Email,
		PasswordHash:      hash,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		VerificationToken: &token,
		TokenExpiresAt:    &expires,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// A concurrent registration of the same email loses here with ErrConflict.
	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, err
	}

	msg := notify.VerificationMessage{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		Token:     token,
		Link:      s.verificationLink(user.ID, token),
		ExpiresAt: expires,
	}
	if err := s.publisher.PublishVerification(ctx, msg); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to publish verification message")
	}

	return user, nil
}

func (s *UserService) verificationLink(id, token string) string {
	q := url.Values{}
	q.Set("user", id)
	q.Set("token", token)
	return s.opts.VerificationURL + "/users/verify?" + q.Encode()
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	return *user, nil
}

// UpdateSelf applies the supplied fields. The update timestamp is refreshed
// even when no field is supplied.
func (s *UserService) UpdateSelf(ctx context.Context, id string, in validation.UpdateInput) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Password != nil {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return models.User{}, err
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		return models.User{}, err
	}
	return *user, nil
}

// VerifyEmail consumes a verification token. Checks run in a fixed order:
// unknown account, already verified (success, no write), token mismatch,
// expiry.
func (s *UserService) VerifyEmail(ctx context.Context, id, token string) error {
	if id == "" || token == "" {
		return common.ErrValidation
	}
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrValidation
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrValidation
		}
		return err
	}

	if user.Verified {
		return nil
	}

	if user.VerificationToken == nil ||
		subtle.ConstantTimeCompare([]byte(*user.VerificationToken), []byte(token)) != 1 {
		return common.ErrInvalidToken
	}

	now := s.now()
	if user.TokenExpired(now) {
		return common.ErrTokenExpired
	}

	err = s.users.MarkVerified(ctx, user.ID, token, now)
	if errors.Is(err, common.ErrInvalidToken) {
		// Another request may have consumed the same token first.
		current, getErr := s.users.GetByID(ctx, user.ID)
		if getErr == nil && current.Verified {
			return nil
		}
	}
	return err
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return models.User{}, common.ErrUnauthorized
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, common.ErrUnauthorized
	}
	return *user, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", &validation.FieldError{Field: validation.FieldPassword, Reason: "too long"}
		}
		return "", fmt.Errorf("failed to hash password: %w: %w", common.ErrInternal, err)
	}
	return string(hashed), nil
}
