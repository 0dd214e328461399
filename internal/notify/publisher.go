// Package notify hands verification messages to the out-of-process mailer.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/accounts-api/internal/config"
)

// VerificationMessage is the payload consumed by the mailer. Field names are
// part of the wire contract.
type VerificationMessage struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	Token     string    `json:"token"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Publisher delivers verification messages.
type Publisher interface {
	PublishVerification(ctx context.Context, msg VerificationMessage) error
	Close() error
}

// New returns the publisher selected by cfg.NotifyBackend.
func New(ctx context.Context, cfg *config.Config) (Publisher, error) {
	switch cfg.NotifyBackend {
	case config.NotifySNS:
		return NewSNSPublisher(ctx, cfg)
	case config.NotifyKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case config.NotifyLog, "":
		return LogPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported notify backend %q", cfg.NotifyBackend)
	}
}
