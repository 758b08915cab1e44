// File: internal/identity/github.go

// Package identity resolves uploader identities from bearer tokens.
//
// The only supported backend is the GitHub REST API: a token is valid exactly
// when GET /user succeeds with it, and the canonical username is the login
// field of that response. Resolution is a single outbound call per upload,
// never retried, with no local state beyond an outbound rate limiter.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
)

// GitHubResolver validates bearer tokens against the GitHub API and returns
// the account login they belong to.
type GitHubResolver struct {
	client  *github.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewGitHubResolver builds a resolver from configuration. The API base URL is
// overridable to support GitHub Enterprise deployments and tests.
func NewGitHubResolver(cfg config.GitHubConfig, logger *zap.Logger) (*GitHubResolver, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	client := github.NewClient(httpClient)

	if cfg.APIBaseURL != "" {
		base := cfg.APIBaseURL
		// go-github requires the base URL to end with a slash.
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github api base url %q: %w", cfg.APIBaseURL, err)
		}
		client.BaseURL = parsed
	}

	return &GitHubResolver{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:     logger.Named("identity"),
	}, nil
}

// Resolve exchanges a bearer token for the GitHub login it authenticates.
// Any rejection by the API, including a response without a login, is an
// error; the caller decides how to classify it.
func (r *GitHubResolver) Resolve(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("empty access token")
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("identity rate limit: %w", err)
	}

	user, resp, err := r.client.WithAuthToken(token).Users.Get(ctx, "")
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		r.log.Warn("Identity lookup rejected.", zap.Int("status", status), zap.Error(err))
		return "", fmt.Errorf("github identity lookup failed: %w", err)
	}

	login := user.GetLogin()
	if login == "" {
		return "", errors.New("github identity response missing login")
	}

	r.log.Debug("Resolved uploader identity.", zap.String("username", login))
	return login, nil
}
