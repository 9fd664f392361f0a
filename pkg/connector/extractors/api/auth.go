package api

import (
	"context"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/clients"
	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/errors"
)

// setupAuthentication applies the configured auth scheme to the extractor's
// headers or query parameters. It runs once at construction; pages reuse the
// prepared state.
func (e *Extractor) setupAuthentication(auth config.Params) error {
	if len(auth) == 0 {
		e.logger.Debug("no authentication configured")
		return nil
	}

	switch strings.ToLower(auth.GetString("type", "")) {
	case "basic":
		credentials := auth.GetString("username", "") + ":" + auth.GetString("password", "")
		e.headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
		e.logger.Debug("configured basic authentication")

	case "bearer":
		if token := auth.GetString("token", ""); token != "" {
			e.headers["Authorization"] = "Bearer " + token
			e.logger.Debug("configured bearer token authentication")
		}

	case "api_key":
		key := auth.GetString("key", "")
		paramName := auth.GetString("param_name", "api_key")
		switch strings.ToLower(auth.GetString("location", "query")) {
		case "query":
			e.query[paramName] = key
			e.logger.Debug("configured api key in query parameter", zap.String("param", paramName))
		case "header":
			e.headers[paramName] = key
			e.logger.Debug("configured api key in header", zap.String("header", paramName))
		}

	case "oauth2":
		token, err := clients.FetchClientCredentialsToken(context.Background(), clients.OAuth2Config{
			ClientID:     auth.GetString("client_id", ""),
			ClientSecret: auth.GetString("client_secret", ""),
			TokenURL:     auth.GetString("token_url", ""),
			Scopes:       auth.GetStringSlice("scopes"),
		}, e.logger)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeAuthentication, "oauth2 setup failed")
		}
		e.headers["Authorization"] = "Bearer " + token
		e.logger.Debug("configured oauth2 authentication")

	default:
		e.logger.Warn("unsupported authentication type",
			zap.String("type", auth.GetString("type", "")))
	}

	return nil
}
