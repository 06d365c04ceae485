package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

// TokenService exchanges a refresh token for a new access token and
// expiry, persisting both on the account.
type TokenService interface {
	Refresh(ctx context.Context, account *models.MailAccount) error
}
