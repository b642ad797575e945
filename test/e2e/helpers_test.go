//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/vyrodovalexey/rosterboard/internal/model"
)

// Environment variable names for E2E test configuration.
const (
	EnvServerURL = "E2E_SERVER_URL"
	EnvAPIKey    = "E2E_API_KEY"
	EnvBasicUser = "E2E_BASIC_USER"
	EnvBasicPass = "E2E_BASIC_PASS"
)

// Default configuration values.
const (
	DefaultServerURL = "http://localhost:8080"
	DefaultTimeout   = 15 * time.Second
)

// getEnvOrDefault returns the value of the environment variable
// identified by key, or defaultVal if the variable is not set.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// e2eServerURL returns the base URL of the server under test.
func e2eServerURL() string {
	return getEnvOrDefault(EnvServerURL, DefaultServerURL)
}

// skipIfServerUnavailable checks whether the server is reachable
// and skips the test if it is not.
func skipIfServerUnavailable(t *testing.T) {
	t.Helper()

	base := e2eServerURL()
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(base + "/health")
	if err != nil {
		t.Skipf("Server unavailable at %s: %v", base, err)
	}
	resp.Body.Close()
}

// newHTTPClient returns a client that reports redirects instead of
// following them.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// snapshot is the board view returned by the board routes.
type snapshot struct {
	Members    []model.Member `json:"members"`
	Page       int            `json:"page,omitempty"`
	TotalPages int            `json:"totalPages"`
	TotalItems int            `json:"totalItems"`
	CanShare   bool           `json:"canShare"`
	Address    string         `json:"address"`
}

// memberResult is returned by member mutations.
type memberResult struct {
	Member *model.Member `json:"member"`
	Board  snapshot      `json:"board"`
}

// doRequest performs an HTTP request and returns status code, headers and
// body. A non-nil payload is sent as JSON.
func doRequest(
	t *testing.T,
	client *http.Client,
	method, url string,
	payload any,
	headers map[string]string,
) (int, http.Header, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	return resp.StatusCode, resp.Header, respBody
}

// decodeData unmarshals the data field of a success envelope.
func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()

	var resp model.APIResponse[T]
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Failed to parse response %s: %v", body, err)
	}
	return resp.Data
}

// editorHeaders returns credentials from the environment. The API key wins
// when both are set.
func editorHeaders() map[string]string {
	if apiKey := os.Getenv(EnvAPIKey); apiKey != "" {
		return map[string]string{"X-API-Key": apiKey}
	}

	user := os.Getenv(EnvBasicUser)
	pass := os.Getenv(EnvBasicPass)
	if user != "" && pass != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		return map[string]string{"Authorization": "Basic " + creds}
	}

	return map[string]string{}
}

// addMember creates a member and registers its deletion as cleanup.
func addMember(t *testing.T, client *http.Client, base string, fields model.MemberFields) memberResult {
	t.Helper()

	status, _, body := doRequest(t, client, http.MethodPost, base+"/api/v1/members", fields, editorHeaders())
	if status != http.StatusCreated {
		t.Fatalf("addMember: expected 201, got %d. Body: %s", status, body)
	}

	result := decodeData[memberResult](t, body)
	t.Cleanup(func() {
		doRequest(t, client, http.MethodDelete, base+"/api/v1/members/"+result.Member.ID, nil, editorHeaders())
	})
	return result
}
