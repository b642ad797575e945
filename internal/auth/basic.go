package auth

import (
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuthenticator authenticates editors using HTTP Basic authentication
// with bcrypt-hashed passwords.
type BasicAuthenticator struct {
	users map[string][]byte // username -> bcrypt hash
}

// decoyHash is compared against for unknown users so that a miss costs
// as much as a wrong password.
var decoyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("rosterboard-decoy"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: generating decoy hash: %v", err))
	}
	return hash
})

// NewBasicAuthenticator creates a Basic authenticator from
// "user1:hash1,user2:hash2". Bcrypt hashes contain no colon, so each entry
// is split on its first one.
func NewBasicAuthenticator(usersConfig string) (*BasicAuthenticator, error) {
	pairs, err := parsePairs("basic auth", usersConfig)
	if err != nil {
		return nil, err
	}

	users := make(map[string][]byte, len(pairs))
	for user, hash := range pairs {
		users[user] = []byte(hash)
	}
	return &BasicAuthenticator{users: users}, nil
}

// Users returns the number of configured editors.
func (a *BasicAuthenticator) Users() int {
	return len(a.users)
}

// Authenticate checks the request's Basic credentials against the stored
// bcrypt hash.
func (a *BasicAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	hash, known := a.users[username]
	if !known {
		_ = bcrypt.CompareHashAndPassword(decoyHash(), []byte(password))
		return nil, fmt.Errorf("%w: unknown user %q", ErrInvalidCredentials, username)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: password mismatch for %q", ErrInvalidCredentials, username)
	}

	return &AuthInfo{Method: AuthMethodBasic, Subject: username}, nil
}

// Method returns the authentication method type.
func (a *BasicAuthenticator) Method() AuthMethod {
	return AuthMethodBasic
}
