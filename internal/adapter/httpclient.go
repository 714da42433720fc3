package adapter

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/beta-portfolio/internal/errors"
	"github.com/beta-portfolio/internal/retry"
)

const userAgent = "beta-portfolio/1.0"

// errNotFound signals an upstream 404. Callers use it to fall through to an
// alternative source rather than failing the request.
var errNotFound = stderrors.New("not found")

// httpClient is the shared transport for every provider client: a rate
// limiter in front of a circuit breaker in front of retried HTTP GETs.
type httpClient struct {
	name     string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	retry    retry.Config
	requests *prometheus.CounterVec
	log      zerolog.Logger
}

// ClientOptions configures a provider client.
type ClientOptions struct {
	Name           string
	RequestTimeout time.Duration
	RequestsPerSec float64
	// Requests counts upstream requests by provider and outcome. Optional.
	Requests *prometheus.CounterVec
	Logger   zerolog.Logger
}

func newHTTPClient(opts ClientOptions) *httpClient {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 3
	}

	settings := gobreaker.Settings{
		Name:    opts.Name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &httpClient{
		name:     opts.Name,
		client:   &http.Client{Timeout: opts.RequestTimeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		retry:    retry.DefaultConfig(),
		requests: opts.Requests,
		log:      opts.Logger.With().Str("provider", opts.Name).Logger(),
	}
}

// getJSON performs a rate-limited, breaker-guarded, retried GET and decodes
// the JSON response body into v.
func (c *httpClient) getJSON(ctx context.Context, rawURL string, params url.Values, v interface{}) error {
	err := retry.Do(ctx, c.log, c.retry, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.doGet(ctx, rawURL, params, v)
		})
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if stderrors.Is(err, errNotFound) {
			return err
		}
		return errors.NewTransportFailureError(c.name, err)
	}
	return nil
}

func (c *httpClient) observe(outcome string) {
	if c.requests != nil {
		c.requests.WithLabelValues(c.name, outcome).Inc()
	}
}

func (c *httpClient) doGet(ctx context.Context, rawURL string, params url.Values, v interface{}) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe("transport_error")
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("url", u.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("provider request")

	if resp.StatusCode == http.StatusNotFound {
		c.observe("not_found")
		return retry.Permanent(errNotFound)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		c.observe("rate_limited")
		return errors.NewProviderRateLimitError(c.name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe("error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned HTTP %d: %s", c.name, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		c.observe("error")
		return fmt.Errorf("decoding %s response: %w", c.name, err)
	}
	c.observe("ok")
	return nil
}
