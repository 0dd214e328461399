package models

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestUserPublic_ConvertsToDisplayTimezone(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	token := "abc"

	u := User{
		ID:                "id-1",
		Email:             "john@x.com",
		PasswordHash:      "hash",
		FirstName:         "John",
		LastName:          "Doe",
		VerificationToken: &token,
		CreatedAt:         created,
		UpdatedAt:         updated,
	}

	p := u.Public(eastern(t))
	assert.Equal(t, "2024-01-01T07:00:00-05:00", p.AccountCreated)
	assert.Equal(t, "2024-07-01T08:00:00-04:00", p.AccountUpdated)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `"id":"id-1"`)
	assert.NotContains(t, body, "hash")
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "abc")
}

func TestUserTokenExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	assert.True(t, User{}.TokenExpired(now))
	assert.True(t, User{TokenExpiresAt: &past}.TokenExpired(now))
	assert.False(t, User{TokenExpiresAt: &future}.TokenExpired(now))
}

func TestImagePublic(t *testing.T) {
	img := Image{
		ID:         "img-1",
		UserID:     "id-1",
		FileName:   "me.png",
		StorageKey: "profile-pictures/id-1/1-me.png",
		URL:        "https://bucket.s3.amazonaws.com/profile-pictures/id-1/1-me.png",
		UploadDate: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	p := img.Public(eastern(t))
	assert.Equal(t, "2024-01-01T07:00:00-05:00", p.UploadDate)
	assert.Equal(t, "img-1", p.ID)
	assert.Equal(t, "id-1", p.UserID)
}
