// Package auth authenticates roster editors.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthMethod represents the authentication method used.
type AuthMethod string

const (
	// AuthMethodNone disables authentication.
	AuthMethodNone AuthMethod = "none"
	// AuthMethodBasic indicates HTTP Basic authentication.
	AuthMethodBasic AuthMethod = "basic"
	// AuthMethodAPIKey indicates API key authentication.
	AuthMethodAPIKey AuthMethod = "apikey"
	// AuthMethodMulti accepts either Basic or API key credentials.
	AuthMethodMulti AuthMethod = "multi"
)

// AuthInfo holds the authenticated editor identity.
type AuthInfo struct {
	Method  AuthMethod
	Subject string
}

// Authenticator validates a request and returns auth info.
type Authenticator interface {
	Authenticate(r *http.Request) (*AuthInfo, error)
	Method() AuthMethod
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidConfig      = errors.New("invalid auth configuration")
)

// Config selects and configures an authenticator.
type Config struct {
	Mode AuthMethod
	// BasicUsers is "user1:bcrypthash1,user2:bcrypthash2".
	BasicUsers string
	// APIKeys is "key1:name1,key2:name2".
	APIKeys string
}

// New builds the authenticator for cfg.Mode. It returns nil for
// AuthMethodNone.
func New(cfg Config) (Authenticator, error) {
	switch cfg.Mode {
	case AuthMethodNone, "":
		return nil, nil
	case AuthMethodBasic:
		return NewBasicAuthenticator(cfg.BasicUsers)
	case AuthMethodAPIKey:
		return NewAPIKeyAuthenticator(cfg.APIKeys)
	case AuthMethodMulti:
		var authenticators []Authenticator
		if strings.TrimSpace(cfg.BasicUsers) != "" {
			ba, err := NewBasicAuthenticator(cfg.BasicUsers)
			if err != nil {
				return nil, err
			}
			authenticators = append(authenticators, ba)
		}
		if strings.TrimSpace(cfg.APIKeys) != "" {
			ak, err := NewAPIKeyAuthenticator(cfg.APIKeys)
			if err != nil {
				return nil, err
			}
			authenticators = append(authenticators, ak)
		}
		if len(authenticators) == 0 {
			return nil, fmt.Errorf("%w: multi mode requires basic users or API keys", ErrInvalidConfig)
		}
		return NewMultiAuthenticator(authenticators...), nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, cfg.Mode)
	}
}

// parsePairs parses "left:right,left:right" credentials. Entries are
// split on the first colon; blank entries are skipped.
func parsePairs(kind, raw string) (map[string]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %s config must not be empty", ErrInvalidConfig, kind)
	}

	pairs := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %s entry must be name:value", ErrInvalidConfig, kind)
		}
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("%w: %s entry has an empty side", ErrInvalidConfig, kind)
		}
		pairs[left] = right
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no valid %s entries found", ErrInvalidConfig, kind)
	}
	return pairs, nil
}

// contextKey is the type for context keys in this package.
type contextKey string

// authInfoKey is the context key for AuthInfo.
const authInfoKey contextKey = "auth_info"

// FromContext retrieves AuthInfo from the context.
func FromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

// WithAuthInfo stores AuthInfo in the context.
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}
