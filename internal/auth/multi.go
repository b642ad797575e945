package auth

import (
	"errors"
	"net/http"
)

// MultiAuthenticator accepts any of several credential kinds. A request
// that carries no credentials of one kind falls through to the next; a
// request whose credentials are present but wrong is rejected at once.
type MultiAuthenticator struct {
	chain []Authenticator
}

// NewMultiAuthenticator creates a multi-method authenticator that tries
// authenticators in order.
func NewMultiAuthenticator(authenticators ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{chain: authenticators}
}

// Methods lists the wrapped methods in evaluation order.
func (a *MultiAuthenticator) Methods() []AuthMethod {
	methods := make([]AuthMethod, len(a.chain))
	for i, authenticator := range a.chain {
		methods[i] = authenticator.Method()
	}
	return methods
}

// Authenticate returns the first successful result.
func (a *MultiAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	for _, authenticator := range a.chain {
		info, err := authenticator.Authenticate(r)
		switch {
		case err == nil:
			return info, nil
		case !errors.Is(err, ErrUnauthenticated):
			return nil, err
		}
	}
	return nil, ErrUnauthenticated
}

// Method returns the authentication method type.
func (a *MultiAuthenticator) Method() AuthMethod {
	return AuthMethodMulti
}
