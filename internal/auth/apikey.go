package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is the HTTP header name for API key authentication.
const APIKeyHeader = "X-API-Key"

type apiKey struct {
	name   string
	digest [sha256.Size]byte
}

// APIKeyAuthenticator authenticates editors by the X-API-Key header. Only
// key digests are kept in memory.
type APIKeyAuthenticator struct {
	keys []apiKey
}

// NewAPIKeyAuthenticator creates an API key authenticator from
// "key1:name1,key2:name2".
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	pairs, err := parsePairs("apikey auth", keysConfig)
	if err != nil {
		return nil, err
	}

	a := &APIKeyAuthenticator{keys: make([]apiKey, 0, len(pairs))}
	for key, name := range pairs {
		a.keys = append(a.keys, apiKey{name: name, digest: sha256.Sum256([]byte(key))})
	}
	return a, nil
}

// Authenticate compares the header digest with every configured key so
// the time taken does not depend on which key matched.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	presented := r.Header.Get(APIKeyHeader)
	if presented == "" {
		return nil, ErrUnauthenticated
	}

	digest := sha256.Sum256([]byte(presented))
	matched := ""
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(digest[:], k.digest[:]) == 1 {
			matched = k.name
		}
	}
	if matched == "" {
		return nil, ErrInvalidAPIKey
	}

	return &AuthInfo{Method: AuthMethodAPIKey, Subject: matched}, nil
}

// Method returns the authentication method type.
func (a *APIKeyAuthenticator) Method() AuthMethod {
	return AuthMethodAPIKey
}
