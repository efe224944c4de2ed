package entityfilter

import (
	"context"

	"github.com/hugr-lab/entityfilter/auth"
)

// Authenticator validates bearer tokens and returns user identity.
// This is re-exported from the auth package for convenience.
type Authenticator = auth.Authenticator

// BearerAuth creates an Authenticator from a validation function.
//
// Example:
//
//	auth := entityfilter.BearerAuth(func(token string) (string, error) {
//	    user, err := validateWithMyBackend(token)
//	    if err != nil {
//	        return "", entityfilter.ErrUnauthorized
//	    }
//	    return user.ID, nil
//	})
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return auth.BearerAuth(validateFunc)
}

// StaticTokens creates an Authenticator from a token to identity table.
// When grants is non-nil, each identity may read only the listed
// collections ("schema.collection" or "schema.*").
func StaticTokens(tokens map[string]string, grants map[string][]string) Authenticator {
	return auth.StaticTokens(tokens, grants)
}

// NoAuth returns an Authenticator that allows all requests without validation.
// Useful for development and testing. DO NOT use in production.
func NoAuth() Authenticator {
	return auth.NoAuth()
}

// IdentityFromContext retrieves the authenticated user identity from context.
// Returns empty string if no identity is set (unauthenticated request).
// Scan functions can use it to return data based on the caller.
func IdentityFromContext(ctx context.Context) string {
	return auth.IdentityFromContext(ctx)
}
