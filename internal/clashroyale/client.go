package clashroyale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const DefaultBaseUrl = "https://api.clashroyale.com/v1"

var ErrPlayerNotFound = errors.New("clash royale player not found")

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("clash royale api error: status=%d body=%s", e.Status, e.Body)
}

type Client struct {
	baseUrl string
	apiKey  string
	http    *fasthttp.Client

	timeout    time.Duration
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
}

type Option func(*Client)

func WithBaseUrl(url string) Option {
	return func(c *Client) { c.baseUrl = strings.TrimRight(url, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.backoffMin = min
		c.backoffMax = max
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseUrl: DefaultBaseUrl,
		apiKey:  apiKey,
		http: &fasthttp.Client{
			ReadTimeout:            10 * time.Second,
			WriteTimeout:           10 * time.Second,
			MaxConnsPerHost:        32,
			DisablePathNormalizing: true,
		},
		timeout:    10 * time.Second,
		retryMax:   3,
		backoffMin: 200 * time.Millisecond,
		backoffMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Player looks up a profile. ErrPlayerNotFound is returned for unknown tags.
func (c *Client) Player(ctx context.Context, tag string) (*model.Player, error) {
	var player model.Player
	err := c.getJSON(ctx, "/players/"+encodeTag(tag), &player)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == fasthttp.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, FormatTag(tag))
		}
		return nil, fmt.Errorf("fetch player %s: %w", FormatTag(tag), err)
	}
	player.Tag = FormatTag(player.Tag)
	return &player, nil
}

// BattleLog returns the player's recent battles in provider order. Any failure
// yields an empty log: callers must read that as "nothing yet", not "no battle".
func (c *Client) BattleLog(ctx context.Context, tag string) []model.Battle {
	var battles []model.Battle
	if err := c.getJSON(ctx, "/players/"+encodeTag(tag)+"/battlelog", &battles); err != nil {
		log.Warn().Err(err).Str("playerTag", FormatTag(tag)).Msg("Battle log fetch failed, treating as empty")
		return []model.Battle{}
	}
	return battles
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseUrl + path)
	req.URI().DisablePathNormalizing = true
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	b := &backoff.Backoff{
		Min:    c.backoffMin,
		Max:    c.backoffMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp.Reset()

		err := c.http.DoDeadline(req, resp, c.deadline(ctx))
		switch {
		case err != nil:
			lastErr = fmt.Errorf("request %s: %w", path, err)
		case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
			statusErr := &StatusError{Status: resp.StatusCode(), Body: truncate(string(resp.Body()), 512)}
			if !shouldRetryStatus(statusErr.Status) {
				return statusErr
			}
			lastErr = statusErr
		default:
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		}

		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, b.Duration()); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) deadline(ctx context.Context) time.Time {
	clientDeadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDeadline) {
		return dl
	}
	return clientDeadline
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusTooManyRequests,
		fasthttp.StatusInternalServerError,
		fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
