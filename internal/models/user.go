package models

import "time"

// DisplayTimeFormat is the layout client-facing timestamps are rendered in.
const DisplayTimeFormat = time.RFC3339

// User represents a registered account.
type User struct {
	ID                string
	Email             string
	PasswordHash      string // Never expose this to the client
	FirstName         string
	LastName          string
	Verified          bool
	VerificationToken *string
	TokenExpiresAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserResponse is the public projection of a User.
type UserResponse struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	AccountCreated string `json:"account_created"`
	AccountUpdated string `json:"account_updated"`
}

// Public converts u into its client-facing shape with timestamps in loc.
func (u User) Public(loc *time.Location) UserResponse {
	return UserResponse{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		AccountCreated: u.CreatedAt.In(loc).Format(DisplayTimeFormat),
		AccountUpdated: u.UpdatedAt.In(loc).Format(DisplayTimeFormat),
	}
}

// TokenExpired reports whether the pending verification token is past its
// expiry at now. A user without an expiry is treated as expired.
func (u User) TokenExpired(now time.Time) bool {
	if u.TokenExpiresAt == nil {
		return true
	}
	return now.After(*u.TokenExpiresAt)
}
