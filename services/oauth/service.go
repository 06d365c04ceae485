package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenService refreshes OAuth access tokens against the provider token
// endpoint and persists the rotated token.
type TokenService struct {
	cfg      *config.OAuthConfig
	accounts interfaces.MailAccountRepository
	client   *http.Client
	log      logger.Logger
}

func NewTokenService(cfg *config.OAuthConfig, accounts interfaces.MailAccountRepository, log logger.Logger) *TokenService {
	return &TokenService{
		cfg:      cfg,
		accounts: accounts,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func (s *TokenService) Refresh(ctx context.Context, account *models.MailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TokenService.Refresh")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag(tracing.SpanTagProvider, account.Provider.String())

	if account.RefreshToken == "" {
		err := errors.New("account has no refresh token")
		tracing.TraceErr(span, err)
		return err
	}

	tokenURL, clientID, clientSecret, err := s.endpointFor(account.Provider)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	params := url.Values{}
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", account.RefreshToken)
	params.Set("client_id", clientID)
	params.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "token endpoint request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return err
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to decode token response")
	}
	if token.AccessToken == "" {
		err := errors.New("token endpoint returned empty access token")
		tracing.TraceErr(span, err)
		return err
	}

	expiresAt := utils.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	if err := s.accounts.SaveTokens(ctx, account.ID, token.AccessToken, expiresAt); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	account.AccessToken = token.AccessToken
	account.TokenExpiresAt = &expiresAt

	s.log.Infof("refreshed oauth token for account %s, expires at %s", account.ID, expiresAt.Format(time.RFC3339))
	return nil
}

func (s *TokenService) endpointFor(provider enum.EmailProvider) (tokenURL, clientID, clientSecret string, err error) {
	switch provider {
	case enum.ProviderGmail:
		return s.cfg.GoogleTokenURL, s.cfg.GoogleClientID, s.cfg.GoogleClientSecret, nil
	case enum.ProviderOutlook:
		return s.cfg.MicrosoftTokenURL, s.cfg.MicrosoftClientID, s.cfg.MicrosoftClientSecret, nil
	default:
		return "", "", "", fmt.Errorf("provider %s does not support oauth", provider)
	}
}
