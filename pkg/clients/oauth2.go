package clients

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/datafreight/freight/pkg/errors"
)

// OAuth2Config holds client-credentials grant settings.
type OAuth2Config struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes,omitempty"`
}

// FetchClientCredentialsToken exchanges client credentials for a bearer
// token. The exchange is a single request with no retry wrapper; a failed
// exchange surfaces as an authentication error and the caller decides
// whether to proceed.
func FetchClientCredentialsToken(ctx context.Context, cfg OAuth2Config, logger *zap.Logger) (string, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" {
		return "", errors.New(errors.ErrorTypeAuthentication,
			"oauth2 requires client_id, client_secret and token_url")
	}

	conf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	token, err := conf.Token(ctx)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeAuthentication, "oauth2 token request failed")
	}

	if logger != nil {
		logger.Info("oauth2 token acquired", zap.Time("expires_at", token.Expiry))
	}

	return token.AccessToken, nil
}
