package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"gymbook/internal/config"
)

// HTTPAuth validates API keys and applies per-client rate limits.
type HTTPAuth struct {
	cfg             config.APIConfig
	clientsByAPIKey map[string]config.APIClientKey
	limiter         *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{
		cfg:             cfg,
		clientsByAPIKey: m,
		limiter:         newRateLimiter(&cfg),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}

		if a.cfg.RateLimit.RPS > 0 {
			lim := a.limiter.getLimiter(a.clientKey(r))
			if !lim.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	header := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)
	if header == "" {
		header = "x-api-key"
	}

	apiKey := strings.TrimSpace(r.Header.Get(header))
	if apiKey == "" {
		return errMissingAPIKey
	}

	client, ok := a.clientsByAPIKey[apiKey]
	if !ok {
		return errInvalidAPIKey
	}

	if subtle.ConstantTimeCompare([]byte(client.Key), []byte(apiKey)) != 1 {
		return errInvalidAPIKey
	}

	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	header := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)
	if header == "" {
		header = "x-api-key"
	}
	if apiKey := strings.TrimSpace(r.Header.Get(header)); apiKey != "" {
		return apiKey
	}
	return r.RemoteAddr
}
