// Package imagesearch looks up a portrait for a new roster member through
// the Pexels search API, falling back to the default image on any failure.
package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/model"
)

// Portrait dimensions forced onto every returned image URL.
const (
	PortraitHeight = 400
	PortraitWidth  = 400
)

// DefaultBaseURL is the Pexels API root.
const DefaultBaseURL = "https://api.pexels.com/v1"

// searchPrefix is prepended to the job title to bias results to portraits.
const searchPrefix = "professional"

// Lookup errors.
var (
	ErrNoResults   = errors.New("image search returned no photos")
	ErrBadResponse = errors.New("image search returned an unexpected response")
)

var dimensionsPattern = regexp.MustCompile(`h=\d+&w=\d+`)

var lookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roster_image_lookups_total",
		Help: "Total number of portrait lookups by result",
	},
	[]string{"result"},
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client queries the image search API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// searchParams is encoded into the search query string.
type searchParams struct {
	Query   string `url:"query"`
	PerPage int    `url:"per_page"`
}

type searchResult struct {
	Photos []struct {
		ID  int64 `json:"id"`
		Src struct {
			Portrait string `json:"portrait"`
		} `json:"src"`
	} `json:"photos"`
}

// NewClient creates a Client. An empty API key disables remote lookups.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "imagesearch",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoResults)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("image search circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// Enabled reports whether remote lookups are configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Lookup returns a portrait URL for jobTitle, or model.DefaultImageURL.
func (c *Client) Lookup(ctx context.Context, jobTitle string) string {
	if !c.Enabled() {
		lookupsTotal.WithLabelValues("disabled").Inc()
		return model.DefaultImageURL
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.search(ctx, jobTitle)
	})
	if err != nil {
		lookupsTotal.WithLabelValues("fallback").Inc()
		c.logger.Warn("portrait lookup failed, using default image",
			zap.String("job_title", jobTitle),
			zap.Error(err),
		)
		return model.DefaultImageURL
	}

	lookupsTotal.WithLabelValues("found").Inc()
	return result.(string)
}

func (c *Client) search(ctx context.Context, jobTitle string) (string, error) {
	terms := strings.Fields(searchPrefix + " " + jobTitle)
	values, err := query.Values(searchParams{Query: strings.Join(terms, " "), PerPage: 1})
	if err != nil {
		return "", fmt.Errorf("encoding search params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+values.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("searching images: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}

	var result searchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if len(result.Photos) == 0 || result.Photos[0].Src.Portrait == "" {
		return "", ErrNoResults
	}

	return ResizePortrait(result.Photos[0].Src.Portrait), nil
}

// ResizePortrait forces the fixed portrait dimensions onto an image URL.
func ResizePortrait(imageURL string) string {
	return dimensionsPattern.ReplaceAllString(
		imageURL,
		fmt.Sprintf("h=%d&w=%d", PortraitHeight, PortraitWidth),
	)
}
