package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/models"
	"github.com/isdelr/accounts-api/internal/validation"
)

var fixedNow = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestUserService(t *testing.T) (*UserService, *fakeUserRepo, *fakePublisher) {
	t.Helper()
	repo := newFakeUserRepo()
	pub := &fakePublisher{}
	svc := NewUserService(repo, pub, UserOptions{
		BcryptCost:      bcrypt.MinCost,
		VerificationTTL: 2 * time.Minute,
		VerificationURL: "https://accounts.example.com",
	})
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, pub
}

func createInput() validation.CreateInput {
	return validation.CreateInput{
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Password: "s3cretpass",
	}
}

func TestCreateUser(t *testing.T) {
	svc, repo, pub := newTestUserService(t)

	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)

	_, err = uuid.Parse(u.ID)
	require.NoError(t, err)
	assert.False(t, u.Verified)
	assert.Equal(t, fixedNow, u.CreatedAt)
	assert.Equal(t, fixedNow, u.UpdatedAt)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cretpass")))

	require.NotNil(t, u.VerificationToken)
	assert.Len(t, *u.VerificationToken, 2*verificationTokenBytes)
	require.NotNil(t, u.TokenExpiresAt)
	assert.Equal(t, fixedNow.Add(2*time.Minute), *u.TokenExpiresAt)

	stored, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, stored.Email)

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, u.ID, msg.UserID)
	assert.Equal(t, "Jane", msg.FirstName)
	assert.Equal(t, *u.VerificationToken, msg.Token)
	assert.Equal(t, *u.TokenExpiresAt, msg.ExpiresAt)

	link, err := url.Parse(msg.Link)
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.com", link.Host)
	assert.Equal(t, "/users/verify", link.Path)
	assert.Equal(t, u.ID, link.Query().Get("user"))
	assert.Equal(t, msg.Token, link.Query().Get("token"))
}

func TestCreateUser_DistinctTokens(t *testing.T) {
	svc, _, _ := newTestUserService(t)

	a, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)
	in := createInput()
	in.Email = "john@example.com"
	b, err := svc.CreateUser(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, *a.VerificationToken, *b.VerificationToken)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	svc, repo, pub := newTestUserService(t)

	_, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), createInput())
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Len(t, pub.msgs, 1)
	assert.Len(t, repo.byID, 1)
}

func TestCreateUser_EmailIsCaseSensitive(t *testing.T) {
	svc, _, _ := newTestUserService(t)

	_, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)

	in := createInput()
	in.Email = "Jane@example.com"
	_, err = svc.CreateUser(context.Background(), in)
	assert.NoError(t, err)
}

func TestCreateUser_LosesInsertRace(t *testing.T) {
	svc, repo, pub := newTestUserService(t)
	repo.beforeCreate = func() {
		repo.put(models.User{ID: "other", Email: "jane@example.com"})
	}

	_, err := svc.CreateUser(context.Background(), createInput())
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Empty(t, pub.msgs)
}

func TestCreateUser_PublishFailureIsNotFatal(t *testing.T) {
	svc, _, pub := newTestUserService(t)
	pub.err = errors.New("broker down")

	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
}

func TestCreateUser_StoreFailure(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	repo.err = errors.New("db error: connection refused")

	_, err := svc.CreateUser(context.Background(), createInput())
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrConflict)
}

func TestCreateUser_PasswordTooLongForBcrypt(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	in := createInput()
	in.Password = strings.Repeat("a", 73)

	_, err := svc.CreateUser(context.Background(), in)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAuthenticateUser(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)

	got, err := svc.AuthenticateUser(context.Background(), "jane@example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.AuthenticateUser(context.Background(), "jane@example.com", "wrongpass")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.AuthenticateUser(context.Background(), "nobody@example.com", "s3cretpass")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	repo.err = errors.New("db error: timeout")
	_, err = svc.AuthenticateUser(context.Background(), "jane@example.com", "s3cretpass")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrUnauthorized)
}

func TestUpdateSelf(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	svc.now = func() time.Time { return later }

	first, pass := "Janet", "n3wpassword"
	got, err := svc.UpdateSelf(context.Background(), u.ID, validation.UpdateInput{FirstName: &first, Password: &pass})
	require.NoError(t, err)

	assert.Equal(t, "Janet", got.FirstName)
	assert.Equal(t, "Doe", got.LastName)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.CreatedAt, got.CreatedAt)
	assert.Equal(t, later, got.UpdatedAt)

	_, err = svc.AuthenticateUser(context.Background(), u.Email, "n3wpassword")
	assert.NoError(t, err)
	_, err = svc.AuthenticateUser(context.Background(), u.Email, "s3cretpass")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestUpdateSelf_EmptyUpdateRefreshesTimestamp(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)

	later := fixedNow.Add(time.Minute)
	svc.now = func() time.Time { return later }

	got, err := svc.UpdateSelf(context.Background(), u.ID, validation.UpdateInput{})
	require.NoError(t, err)
	assert.Equal(t, later, got.UpdatedAt)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
}

func TestUpdateSelf_UserGone(t *testing.T) {
	svc, _, _ := newTestUserService(t)

	_, err := svc.UpdateSelf(context.Background(), uuid.NewString(), validation.UpdateInput{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetUserByID(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)

	got, err := svc.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = svc.GetUserByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestVerifyEmail(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)
	token := *u.VerificationToken

	svc.now = func() time.Time { return fixedNow.Add(time.Minute) }
	require.NoError(t, svc.VerifyEmail(context.Background(), u.ID, token))

	stored, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verified)
	assert.Nil(t, stored.VerificationToken)
	assert.Equal(t, fixedNow.Add(time.Minute), stored.UpdatedAt)

	// A second visit succeeds without touching the record.
	repo.calls = nil
	require.NoError(t, svc.VerifyEmail(context.Background(), u.ID, token))
	assert.Equal(t, []string{"GetByID"}, repo.calls)
}

func TestVerifyEmail_Ordering(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)
	token := *u.VerificationToken
	expired := fixedNow.Add(3 * time.Minute)

	tests := []struct {
		name  string
		id    string
		token string
		now   time.Time
		want  error
	}{
		{name: "missing id", id: "", token: token, now: fixedNow, want: common.ErrValidation},
		{name: "missing token", id: u.ID, token: "", now: fixedNow, want: common.ErrValidation},
		{name: "malformed id", id: "not-a-uuid", token: token, now: fixedNow, want: common.ErrValidation},
		{name: "unknown id", id: uuid.NewString(), token: token, now: fixedNow, want: common.ErrValidation},
		{name: "wrong token before expiry", id: u.ID, token: "deadbeef", now: fixedNow, want: common.ErrInvalidToken},
		{name: "wrong token after expiry", id: u.ID, token: "deadbeef", now: expired, want: common.ErrInvalidToken},
		{name: "right token after expiry", id: u.ID, token: token, now: expired, want: common.ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.now = func() time.Time { return tt.now }
			assert.ErrorIs(t, svc.VerifyEmail(context.Background(), tt.id, tt.token), tt.want)
		})
	}

	stored, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, stored.Verified)
}

func TestVerifyEmail_ConcurrentConsumer(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)
	token := *u.VerificationToken

	// The same link is followed twice at once: the other request wins the
	// conditional update after this one has read the unverified record.
	repo.beforeMarkVerified = func() {
		winner := u
		winner.Verified = true
		winner.VerificationToken = nil
		winner.TokenExpiresAt = nil
		repo.put(winner)
	}

	require.NoError(t, svc.VerifyEmail(context.Background(), u.ID, token))

	stored, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verified)
}

func TestVerifyEmail_LostTokenStillUnverified(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)
	token := *u.VerificationToken

	// The token was replaced between the read and the update.
	repo.beforeMarkVerified = func() {
		rotated := u
		other := "0123456789abcdef0123456789abcdef"
		rotated.VerificationToken = &other
		repo.put(rotated)
	}

	assert.ErrorIs(t, svc.VerifyEmail(context.Background(), u.ID, token), common.ErrInvalidToken)
}

func TestVerifyEmail_ExpiryBoundary(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	u, err := svc.CreateUser(context.Background(), createInput())
	require.NoError(t, err)

	svc.now = func() time.Time { return *u.TokenExpiresAt }
	assert.NoError(t, svc.VerifyEmail(context.Background(), u.ID, *u.VerificationToken))
}

func TestVerifyEmail_StoreFailure(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	repo.err = errors.New("db error: timeout")

	err := svc.VerifyEmail(context.Background(), uuid.NewString(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrValidation)
}
