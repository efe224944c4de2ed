// Package auth provides bearer token authentication for the Flight server
// and optional per-collection authorization.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidAuthHeader is returned when the authorization header does
	// not use the Bearer scheme.
	ErrInvalidAuthHeader = errors.New("authorization header must use Bearer scheme")

	// ErrTokenIsEmpty is returned when the bearer token is missing.
	ErrTokenIsEmpty = errors.New("authorization token is empty")

	// ErrUnauthenticated is returned when the authenticator rejects a token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned by CollectionAuthorizer implementations to
	// deny access to a collection.
	ErrForbidden = errors.New("access to collection denied")
)

// Authenticator validates bearer tokens.
// Implementations MUST be goroutine-safe.
type Authenticator interface {
	// Authenticate validates token and returns the caller identity.
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

// CollectionAuthorizer is an optional interface for authenticators that
// restrict which collections an identity may read. The identity is
// available through IdentityFromContext.
type CollectionAuthorizer interface {
	AuthorizeCollection(ctx context.Context, schema, collection string) error
}

type noAuthenticator struct{}

// NoAuth returns an authenticator that accepts every token as "anonymous".
func NoAuth() Authenticator {
	return &noAuthenticator{}
}

func (n *noAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return "anonymous", nil
}

type bearerAuthenticator struct {
	validateFunc func(token string) (identity string, err error)
}

// BearerAuth creates an authenticator from a validation function.
// validateFunc returns the identity for a valid token, or an error.
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return &bearerAuthenticator{
		validateFunc: validateFunc,
	}
}

func (b *bearerAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return b.validateFunc(token)
}

// StaticTokens authenticates against a fixed token to identity table and,
// when grants is non-nil, allows each identity only the listed collections.
// Grant entries are "schema.collection" or "schema.*".
func StaticTokens(tokens map[string]string, grants map[string][]string) Authenticator {
	return &staticTokens{tokens: tokens, grants: grants}
}

type staticTokens struct {
	tokens map[string]string
	grants map[string][]string
}

func (s *staticTokens) Authenticate(ctx context.Context, token string) (string, error) {
	identity, ok := s.tokens[token]
	if !ok {
		return "", ErrUnauthenticated
	}
	return identity, nil
}

func (s *staticTokens) AuthorizeCollection(ctx context.Context, schema, collection string) error {
	if s.grants == nil {
		return nil
	}
	for _, g := range s.grants[IdentityFromContext(ctx)] {
		gs, gc, _ := strings.Cut(g, ".")
		if gs == schema && (gc == "*" || gc == collection) {
			return nil
		}
	}
	return ErrForbidden
}

const bearerPrefix = "Bearer "

// TokenFromAuthorizationHeader extracts the token of a "Bearer <token>" header.
func TokenFromAuthorizationHeader(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrTokenIsEmpty
	}
	return token, nil
}

// ValidateToken authenticates token and stores the identity in the context.
func ValidateToken(ctx context.Context, token string, authenticator Authenticator) (context.Context, error) {
	if token == "" {
		return ctx, ErrTokenIsEmpty
	}

	identity, err := authenticator.Authenticate(ctx, token)
	if err != nil {
		return ctx, ErrUnauthenticated
	}

	return WithIdentity(ctx, identity), nil
}

// AuthorizeCollection checks access to a collection when authenticator
// implements CollectionAuthorizer. Other authenticators allow everything.
func AuthorizeCollection(ctx context.Context, authenticator Authenticator, schema, collection string) error {
	ca, ok := authenticator.(CollectionAuthorizer)
	if !ok {
		return nil
	}
	return ca.AuthorizeCollection(ctx, schema, collection)
}
