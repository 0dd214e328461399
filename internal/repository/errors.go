package repository

import (
	"fmt"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/database"
)

// dbError wraps a driver error. Connection failures also match
// common.ErrUnavailable.
func dbError(err error) error {
	if database.IsUnavailable(err) {
		return fmt.Errorf("db unavailable: %w: %w", common.ErrUnavailable, err)
	}
	return fmt.Errorf("db error: %w", err)
}
