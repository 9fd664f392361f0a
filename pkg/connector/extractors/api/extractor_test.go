package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/errors"
)

func TestNewExtractorRequiresURL(t *testing.T) {
	_, err := NewExtractor("src", config.Params{}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestExtractSinglePageList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "name": "one"}, {"id": 2, "name": "two"}]`)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{"url": server.URL})

	batch, err := ext.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test_api", batch.Source)
	require.Equal(t, 2, batch.Len())
	assert.Equal(t, "one", batch.Records[0]["name"])
}

func TestExtractSingleObjectWrappedAsOneRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 7, "name": "solo"}`)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{"url": server.URL})

	batch, err := ext.Extract(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, "solo", batch.Records[0]["name"])
}

func TestExtractItemsPathOnSinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"results": [{"id": 1}]}}`)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{
		"url":        server.URL,
		"pagination": map[string]interface{}{"items_path": "data.results"},
	})

	batch, err := ext.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Len())
}

func TestExtractRetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[{"id": 1}]`)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{
		"url":         server.URL,
		"retry_count": 3,
		"retry_delay": 0.001,
	})

	batch, err := ext.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Len())
	assert.Equal(t, 2, attempts, "one failure plus one successful retry")
}

func TestExtractFailsAfterRetriesExhausted(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{
		"url":         server.URL,
		"retry_count": 2,
		"retry_delay": 0.001,
	})

	_, err := ext.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExtraction))
	assert.Equal(t, 3, attempts, "retry count 2 means 3 total attempts")
}

func TestAuthBasicHeader(t *testing.T) {
	var gotUser, gotPass string
	var ok bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, ok = r.BasicAuth()
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{
		"url": server.URL,
		"auth": map[string]interface{}{
			"type":     "basic",
			"username": "alice",
			"password": "wonder",
		},
	})

	_, err := ext.Extract(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "wonder", gotPass)
}

func TestAuthBearerHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{
		"url":  server.URL,
		"auth": map[string]interface{}{"type": "bearer", "token": "tok123"},
	})

	_, err := ext.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok123", gotAuth)
}

func TestAuthAPIKeyInQuery(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{
		"url":  server.URL,
		"auth": map[string]interface{}{"type": "api_key", "key": "k-42", "location": "query"},
	})

	_, err := ext.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k-42", gotKey)
}

func TestAuthAPIKeyInHeader(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{
		"url": server.URL,
		"auth": map[string]interface{}{
			"type":       "api_key",
			"key":        "k-42",
			"location":   "header",
			"param_name": "X-Api-Key",
		},
	})

	_, err := ext.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k-42", gotKey)
}

func TestAuthOAuth2ClientCredentials(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "oauth-tok", "token_type": "bearer", "expires_in": 3600}`)
	}))
	defer tokenServer.Close()

	var gotAuth string
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	}))
	defer apiServer.Close()

	ext := newTestExtractor(t, config.Params{
		"url": apiServer.URL,
		"auth": map[string]interface{}{
			"type":          "oauth2",
			"client_id":     "cid",
			"client_secret": "csecret",
			"token_url":     tokenServer.URL + "/token",
		},
	})

	_, err := ext.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer oauth-tok", gotAuth)
}

func TestValidateSourceUsesHead(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{"url": server.URL})

	require.NoError(t, ext.ValidateSource(context.Background()))
	assert.Equal(t, http.MethodHead, gotMethod)
}

func TestValidateSourceFailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ext := newTestExtractor(t, config.Params{"url": server.URL})

	err := ext.ValidateSource(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}
