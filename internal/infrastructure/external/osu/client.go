package osu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/pp-arena/pp-arena/internal/application/command"
	"github.com/pp-arena/pp-arena/internal/domain/pool"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the osu! API client.
type ClientConfig struct {
	// BaseURL is the API base URL (https://osu.ppy.sh/api/v2)
	BaseURL string

	// TokenURL is the OAuth token endpoint (https://osu.ppy.sh/oauth/token)
	TokenURL string

	// ClientID is the OAuth client id
	ClientID string

	// ClientSecret is the OAuth client secret
	ClientSecret string

	// GameMode is the ruleset statistics are fetched for
	GameMode string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for API rate limiting
	RateLimiterConfig RateLimiterConfig

	// CircuitBreakerConfig for fault tolerance
	CircuitBreakerConfig CircuitBreakerConfig

	// RetryConfig for retry behavior
	RetryConfig RetryConfig

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(clientID, clientSecret string) ClientConfig {
	return ClientConfig{
		BaseURL:              "https://osu.ppy.sh/api/v2",
		TokenURL:             "https://osu.ppy.sh/oauth/token",
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		GameMode:             "osu",
		Timeout:              30 * time.Second,
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
		RetryConfig:          DefaultRetryConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the osu! API v2 client. It implements the application's
// RatingSource, PlayCountSource and BeatmapScoreSource interfaces.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	mapper         *Mapper

	// Client-credentials token, cached with expiry and refreshed lazily.
	tokenSource oauth2.TokenSource

	// Collapses concurrent identical user fetches: the refresh pass fans out
	// per participant and must not hit the API twice for the same player.
	group singleflight.Group
}

// NewClient creates a new osu! API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.GameMode == "" {
		config.GameMode = "osu"
	}

	creds := clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.TokenURL,
		Scopes:       []string{"public"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:         config.Logger,
		rateLimiter:    NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: NewCircuitBreaker(config.CircuitBreakerConfig),
		mapper:         NewMapper(),
		tokenSource:    oauth2.ReuseTokenSource(nil, creds.TokenSource(context.Background())),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// USER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStats fetches current stats for one user.
func (c *Client) GetUserStats(ctx context.Context, userID shared.OsuUserID) (*command.UserStats, error) {
	key := "user:" + userID.String()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.fetchUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return c.mapper.UserStatsFromDTO(v.(*UserDTO)), nil
}

// GetPlayCount fetches the lifetime play count for one user. Implements the
// reconciler's lazy eligibility re-fetch; an error here marks the account as
// unverifiable rather than failing the sweep.
func (c *Client) GetPlayCount(ctx context.Context, userID shared.OsuUserID) (int, error) {
	stats, err := c.GetUserStats(ctx, userID)
	if err != nil {
		return 0, err
	}
	return stats.PlayCount, nil
}

// fetchUser performs the actual user request.
func (c *Client) fetchUser(ctx context.Context, userID shared.OsuUserID) (*UserDTO, error) {
	path := fmt.Sprintf("/users/%d/%s", userID.Int64(), c.config.GameMode)

	var user UserDTO
	if err := c.doRequest(ctx, http.MethodGet, path, &user); err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID.Int64(), err)
	}
	return &user, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetUserBeatmapScore fetches a user's best score on a beatmap.
// Returns shared.ErrNotFound when the user has no score on the map.
func (c *Client) GetUserBeatmapScore(ctx context.Context, userID shared.OsuUserID, mapID int64) (*command.BeatmapScore, error) {
	path := fmt.Sprintf("/beatmaps/%d/scores/users/%d", mapID, userID.Int64())

	var score BeatmapUserScoreDTO
	if err := c.doRequest(ctx, http.MethodGet, path, &score); err != nil {
		// The API answers 404 both for unknown maps and for players without
		// a score; the caller treats both as "nothing to record".
		return nil, err
	}
	return c.mapper.BeatmapScoreFromDTO(&score), nil
}

// GetBeatmap fetches beatmap metadata, used to resolve pool map titles.
func (c *Client) GetBeatmap(ctx context.Context, mapID int64) (*pool.Map, error) {
	path := fmt.Sprintf("/beatmaps/%d", mapID)

	var beatmap BeatmapDTO
	if err := c.doRequest(ctx, http.MethodGet, path, &beatmap); err != nil {
		return nil, fmt.Errorf("get beatmap %d: %w", mapID, err)
	}
	return c.mapper.PoolMapFromDTO(&beatmap), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with rate limiting, circuit breaking,
// and retries.
func (c *Client) doRequest(ctx context.Context, method, path string, result interface{}) error {
	if err := c.circuitBreaker.Allow(); err != nil {
		return fmt.Errorf("circuit breaker: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryConfig.CalculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.rateLimiter.Allow(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := c.doSingleRequest(ctx, method, path, result)
		if err == nil {
			c.circuitBreaker.RecordSuccess()
			return nil
		}

		lastErr = err

		if !c.isRetryable(err) {
			// 404s are an expected outcome, not an upstream failure.
			if !shared.IsNotFound(err) {
				c.circuitBreaker.RecordFailure()
			}
			return err
		}

		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
		}
	}

	c.circuitBreaker.RecordFailure()
	return fmt.Errorf("request failed after %d retries: %w", c.config.RetryConfig.MaxRetries, lastErr)
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, result interface{}) error {
	fullURL := c.config.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	token, err := c.tokenSource.Token()
	if err != nil {
		return shared.WrapError("osu", "Token", shared.ErrExternalService, "acquire access token", err)
	}
	token.SetAuthHeader(req)

	if c.config.Debug {
		c.logger.Debug("osu api request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return shared.WrapError("osu", "Fetch", shared.ErrNotFound, path, nil)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIErrorDTO{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// isRetryable checks if an error is retryable.
func (c *Client) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}

	errStr := err.Error()
	for _, sub := range []string{"timeout", "connection refused", "temporary", "reset", "EOF"} {
		if strings.Contains(errStr, sub) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus contains the current status of the client.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus
	CircuitBreaker CircuitBreakerStatus
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.circuitBreaker.Status(),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.circuitBreaker.Reset()
}
