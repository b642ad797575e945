//go:build functional

// Package functional provides functional tests for the board HTTP surface
// and the websocket event stream.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/board"
	"github.com/vyrodovalexey/rosterboard/internal/config"
	"github.com/vyrodovalexey/rosterboard/internal/handler"
	"github.com/vyrodovalexey/rosterboard/internal/model"
	"github.com/vyrodovalexey/rosterboard/internal/paging"
	"github.com/vyrodovalexey/rosterboard/internal/server"
	"github.com/vyrodovalexey/rosterboard/internal/sharelink"
	"github.com/vyrodovalexey/rosterboard/internal/store"
)

// Environment variable names for test configuration.
const (
	EnvTestServerHost    = "TEST_SERVER_HOST"
	EnvTestTimeout       = "TEST_TIMEOUT"
	EnvTestMetricsEnable = "TEST_METRICS_ENABLED"
)

// Default test configuration values.
const (
	DefaultTestHost         = "127.0.0.1"
	DefaultTestTimeout      = 30 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultWebSocketTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultMetricsEnabled   = false
)

// TestConfig holds test configuration loaded from environment.
type TestConfig struct {
	Host           string
	Timeout        time.Duration
	MetricsEnabled bool
}

// LoadTestConfig loads test configuration from environment variables.
func LoadTestConfig() *TestConfig {
	cfg := &TestConfig{
		Host:           DefaultTestHost,
		Timeout:        DefaultTestTimeout,
		MetricsEnabled: DefaultMetricsEnabled,
	}

	if host := os.Getenv(EnvTestServerHost); host != "" {
		cfg.Host = host
	}

	if timeoutStr := os.Getenv(EnvTestTimeout); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	if metricsStr := os.Getenv(EnvTestMetricsEnable); metricsStr != "" {
		if enabled, err := strconv.ParseBool(metricsStr); err == nil {
			cfg.MetricsEnabled = enabled
		}
	}

	return cfg
}

// TestServer runs the full server stack on a free local port.
type TestServer struct {
	Server  *server.Server
	Board   *board.Board
	Slot    store.Slot
	BaseURL string
	WSURL   string
	Port    int
	timeout time.Duration
	t       *testing.T
	mu      sync.Mutex
	started bool
}

// NewTestServer creates a server over slot, which is loaded as the
// persisted roster. A nil slot starts with an empty in-memory roster.
func NewTestServer(t *testing.T, slot store.Slot) *TestServer {
	t.Helper()

	testCfg := LoadTestConfig()
	if slot == nil {
		slot = store.NewMemorySlot()
	}

	port := freePort(t, testCfg.Host)
	baseURL := fmt.Sprintf("http://%s:%d", testCfg.Host, port)

	cfg := config.Defaults()
	cfg.ServerPort = port
	cfg.LogLevel = "error"
	cfg.ShutdownTimeout = DefaultShutdownTimeout
	cfg.MetricsEnabled = testCfg.MetricsEnabled
	cfg.PublicURL = baseURL
	cfg.StorageBackend = config.StorageMemory

	boardURL, err := cfg.BoardURL()
	if err != nil {
		t.Fatalf("BoardURL() error = %v", err)
	}

	// Use nop logger for tests to reduce noise
	logger := zap.NewNop()

	st := store.NewRosterStore(slot, logger)
	st.Load(context.Background())

	hub := handler.NewHub(logger)
	b := board.New(st, boardURL,
		board.WithNotifier(hub),
		board.WithClipboard(sharelink.Tee(sharelink.NewLogSink(logger), hub)),
		board.WithLogger(logger),
	)

	srv, err := server.New(cfg, logger, b, hub, nil)
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}

	return &TestServer{
		Server:  srv,
		Board:   b,
		Slot:    slot,
		BaseURL: baseURL,
		WSURL:   fmt.Sprintf("ws://%s:%d", testCfg.Host, port),
		Port:    port,
		timeout: testCfg.Timeout,
		t:       t,
	}
}

func freePort(t *testing.T, host string) int {
	t.Helper()

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		t.Fatalf("Failed to find available port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

// Start starts the test server and registers its shutdown as cleanup.
func (ts *TestServer) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return
	}

	go func() {
		if err := ts.Server.Start(); err != nil {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	ts.waitForReady()
	ts.started = true
	ts.t.Cleanup(ts.Stop)
}

// waitForReady waits for the server to be ready to accept connections.
func (ts *TestServer) waitForReady() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ts.t.Fatalf("Server did not become ready within timeout")
		case <-ticker.C:
			resp, err := http.Get(ts.BaseURL + "/health")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return
				}
			}
		}
	}
}

// Stop stops the test server.
func (ts *TestServer) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := ts.Server.Shutdown(ctx); err != nil {
		ts.t.Logf("Server shutdown error: %v", err)
	}

	ts.started = false
}

// HTTPClient provides a configured HTTP client for tests. Redirects are not
// followed so address replacements stay observable.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	t       *testing.T
}

// NewHTTPClient creates a new HTTP client for testing.
func NewHTTPClient(t *testing.T, baseURL string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: DefaultRequestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
		t:       t,
	}
}

// Request represents an HTTP request configuration.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Do executes an HTTP request and returns the response.
func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		switch v := req.Body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(v)
		case []byte:
			bodyReader = bytes.NewBuffer(v)
		default:
			jsonBody, err := json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post performs a POST request.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *HTTPClient) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Snapshot mirrors the board view returned by the board routes.
type Snapshot struct {
	Members     []model.Member `json:"members"`
	Paginated   bool           `json:"paginated"`
	Page        int            `json:"page,omitempty"`
	TotalPages  int            `json:"totalPages"`
	TotalItems  int            `json:"totalItems"`
	StartIndex  int            `json:"startIndex"`
	EndIndex    int            `json:"endIndex"`
	CanPrevious bool           `json:"canPrevious"`
	CanNext     bool           `json:"canNext"`
	CanShare    bool           `json:"canShare"`
	Address     string         `json:"address"`
}

// MemberResult mirrors the member mutation response.
type MemberResult struct {
	Member *model.Member `json:"member"`
	Board  Snapshot      `json:"board"`
}

// ParseData decodes the data field of a success envelope.
func ParseData[T any](t *testing.T, resp *Response) T {
	t.Helper()

	var envelope model.APIResponse[T]
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		t.Fatalf("failed to parse response %s: %v", string(resp.Body), err)
	}
	if !envelope.Success {
		t.Fatalf("expected success=true, body: %s", string(resp.Body))
	}
	return envelope.Data
}

// ParseError decodes an error response.
func ParseError(t *testing.T, resp *Response) model.ErrorResponse {
	t.Helper()

	var errResp model.ErrorResponse
	if err := json.Unmarshal(resp.Body, &errResp); err != nil {
		t.Fatalf("failed to parse error response %s: %v", string(resp.Body), err)
	}
	return errResp
}

// AssertStatusCode asserts that the response has the expected status code.
func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// AssertHeader asserts that the response has the expected header value.
func AssertHeader(t *testing.T, resp *Response, key, expected string) {
	t.Helper()
	actual := resp.Headers.Get(key)
	if actual != expected {
		t.Errorf("Expected header %s to be %q, got %q", key, expected, actual)
	}
}

// AssertSettled checks the board invariants on a snapshot.
func AssertSettled(t *testing.T, baseURL string, snap Snapshot) {
	t.Helper()

	addressPage := 1
	switch {
	case !snap.Paginated && snap.Page != 0:
		t.Errorf("empty board reports page %d", snap.Page)
	case snap.Paginated && (snap.Page < 1 || snap.Page > snap.TotalPages):
		t.Errorf("page %d outside [1, %d]", snap.Page, snap.TotalPages)
	case snap.Paginated:
		addressPage = snap.Page
	}
	want := fmt.Sprintf("%s/board?page=%d", baseURL, addressPage)
	if snap.Address != want {
		t.Errorf("Address = %s, want %s", snap.Address, want)
	}
	if len(snap.Members) > paging.PageSize {
		t.Errorf("len(Members) = %d exceeds page size", len(snap.Members))
	}
}

// MustDo runs req and fails the test on transport errors.
func (c *HTTPClient) MustDo(ctx context.Context, req Request) *Response {
	c.t.Helper()
	resp, err := c.Do(ctx, req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.Path, err)
	}
	return resp
}

// AddMembers creates n members through the API.
func AddMembers(ctx context.Context, t *testing.T, client *HTTPClient, n int) []model.Member {
	t.Helper()

	members := make([]model.Member, 0, n)
	for i := range n {
		resp := client.MustDo(ctx, Request{
			Method: http.MethodPost,
			Path:   "/api/v1/members",
			Body:   model.MemberFields{UserName: "Member " + letters(i), JobTitle: "Engineer"},
		})
		AssertStatusCode(t, resp, http.StatusCreated)
		result := ParseData[MemberResult](t, resp)
		members = append(members, *result.Member)
	}
	return members
}

// letters spells i with letters only, since names reject digits.
func letters(i int) string {
	s := ""
	for {
		s = string(rune('a'+i%26)) + s
		i /= 26
		if i == 0 {
			return s
		}
		i--
	}
}

// LogTestStart logs the start of a test.
func LogTestStart(t *testing.T, testID, testName string) {
	t.Helper()
	t.Logf("Starting test %s: %s", testID, testName)
}

// LogTestEnd logs the end of a test.
func LogTestEnd(t *testing.T, testID string) {
	t.Helper()
	t.Logf("Completed test %s", testID)
}
