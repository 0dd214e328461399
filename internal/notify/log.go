package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogPublisher writes verification messages to the application log. It is
// meant for local development where no mailer runs.
type LogPublisher struct{}

func (LogPublisher) PublishVerification(ctx context.Context, msg VerificationMessage) error {
	log.Info().
		Str("user_id", msg.UserID).
		Str("email", msg.Email).
		Str("link", msg.Link).
		Time("expires_at", msg.ExpiresAt).
		Msg("Verification message")
	return nil
}

func (LogPublisher) Close() error { return nil }
