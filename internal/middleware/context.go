package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Credentials carries the per-request values tool handlers may need.
// Populated once from request headers and never mutated, so concurrent
// requests cannot observe each other's values.
type Credentials struct {
	GraphToken     string
	GitHubUsername string
	RequestID      string
}

type credentialsKey struct{}

// ExtractCredentials reads the credential headers from a request.
// X-Microsoft-Graph-Token is preferred, X-Graph-Token is its alias, and a
// bearer Authorization header is the fallback.
func ExtractCredentials(r *http.Request) Credentials {
	var bearer string
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		bearer = strings.TrimSpace(auth[7:])
	}

	graphToken := r.Header.Get("X-Microsoft-Graph-Token")
	if graphToken == "" {
		graphToken = r.Header.Get("X-Graph-Token")
	}
	if graphToken == "" {
		graphToken = bearer
	}

	return Credentials{
		GraphToken:     graphToken,
		GitHubUsername: r.Header.Get("X-GitHub-Username"),
		RequestID:      r.Header.Get("X-Request-Id"),
	}
}

// WithCredentials binds credentials into a context.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFrom returns the credentials bound to ctx, or the zero value
// when none were bound.
func CredentialsFrom(ctx context.Context) Credentials {
	c, _ := ctx.Value(credentialsKey{}).(Credentials)
	return c
}

// ContextFromRequest injects the request's credentials into the context the
// tool dispatch runs under. Matches the HTTP transport's context-func shape.
func ContextFromRequest(ctx context.Context, r *http.Request) context.Context {
	return WithCredentials(ctx, ExtractCredentials(r))
}
