package spotify

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	limitMax              = 50
	maxRetries            = 3
	MaxAudioFeaturesBatch = 100

	// DefaultRateLimit is the steady upstream call budget per minute.
	DefaultRateLimit = 100
)

type Config struct {
	ClientId     string
	ClientSecret string

	// RateLimit is the number of upstream calls allowed per minute.
	RateLimit int
}

// ConfigFromEnv reads client credentials from the environment.
func ConfigFromEnv() (*Config, error) {
	config := &Config{
		ClientId:     os.Getenv("SPOTIFY_CLIENT_ID"),
		ClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		RateLimit:    DefaultRateLimit,
	}
	if config.ClientId == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")
	}
	return config, nil
}

// CallObserver is notified after every upstream call attempt.
type CallObserver func(op string, err error)

// Client is the catalog client. All calls share one rate limiter so the
// upstream per-client quota holds no matter how many callers there are.
type Client struct {
	api     *spotifyapi.Client
	limiter *rate.Limiter

	backoffUnit    time.Duration
	rateLimitPause time.Duration
	observe        CallObserver
}

type Option func(*Client)

// WithLimiter replaces the default limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBackoff sets the linear retry backoff unit and the pause taken after
// the upstream reports a rate limit.
func WithBackoff(unit, rateLimitPause time.Duration) Option {
	return func(c *Client) {
		c.backoffUnit = unit
		c.rateLimitPause = rateLimitPause
	}
}

// WithObserver installs a per-call hook, used for metrics.
func WithObserver(o CallObserver) Option {
	return func(c *Client) { c.observe = o }
}

// New authenticates with the client-credentials flow and returns a Client.
// The token source refreshes itself for the lifetime of ctx.
func New(ctx context.Context, config *Config, opts ...Option) *Client {
	cc := &clientcredentials.Config{
		ClientID:     config.ClientId,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	api := spotifyapi.New(cc.Client(ctx), spotifyapi.WithRetry(true))

	perMinute := config.RateLimit
	if perMinute <= 0 {
		perMinute = DefaultRateLimit
	}
	opts = append([]Option{WithLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute))}, opts...)
	return NewWithAPI(api, opts...)
}

// NewWithAPI wraps an already configured upstream client.
func NewWithAPI(api *spotifyapi.Client, opts ...Option) *Client {
	c := &Client{
		api:            api,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		backoffUnit:    3 * time.Second,
		rateLimitPause: 60 * time.Second,
		observe:        func(string, error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func pageOptions(cursor string) ([]spotifyapi.RequestOption, error) {
	opts := []spotifyapi.RequestOption{spotifyapi.Limit(limitMax)}
	if cursor == "" {
		return opts, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return nil, fmt.Errorf("invalid page cursor %q", cursor)
	}
	return append(opts, spotifyapi.Offset(offset)), nil
}

// nextCursor turns the upstream continuation link into an offset cursor.
// An empty cursor means the listing is exhausted.
func nextCursor(next string, offset, count int) string {
	if next == "" || count == 0 {
		return ""
	}
	return strconv.Itoa(offset + count)
}
