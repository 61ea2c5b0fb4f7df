// Package session supplies the credential the cart API calls are made with.
package session

import (
	"context"
)

// DefaultTokenType is used when a credential carries no token type.
const DefaultTokenType = "Bearer"

// Credential is a session id plus the bearer token that authenticates it.
type Credential struct {
	SessionID string `json:"-"`
	Token     string `json:"token"`
	TokenType string `json:"token_type,omitempty"`
}

// AuthorizationHeader renders the Authorization header value.
func (c Credential) AuthorizationHeader() string {
	tt := c.TokenType
	if tt == "" {
		tt = DefaultTokenType
	}
	return tt + " " + c.Token
}

// Valid reports whether both the session id and token are present.
func (c *Credential) Valid() bool {
	return c != nil && c.SessionID != "" && c.Token != ""
}

// Provider returns the current credential. A nil credential with a nil
// error means the caller is not authenticated; an error means the provider
// itself failed.
type Provider interface {
	Session(ctx context.Context) (*Credential, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*Credential, error)

// Session calls f(ctx).
func (f ProviderFunc) Session(ctx context.Context) (*Credential, error) {
	return f(ctx)
}

// Static always returns c, or nil when c is incomplete.
func Static(c Credential) Provider {
	return ProviderFunc(func(context.Context) (*Credential, error) {
		if !c.Valid() {
			return nil, nil
		}
		out := c
		return &out, nil
	})
}

// Chain asks each provider in turn and returns the first credential found.
// A provider error is returned only when no later provider has a credential.
func Chain(providers ...Provider) Provider {
	return ProviderFunc(func(ctx context.Context) (*Credential, error) {
		var firstErr error
		for _, p := range providers {
			c, err := p.Session(ctx)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if c != nil {
				return c, nil
			}
		}
		return nil, firstErr
	})
}

type credentialKey struct{}

// WithCredential stores a request-scoped credential in ctx.
func WithCredential(ctx context.Context, c *Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, c)
}

// FromContext returns the credential stored by WithCredential.
func FromContext(ctx context.Context) (*Credential, bool) {
	c, ok := ctx.Value(credentialKey{}).(*Credential)
	return c, ok && c != nil
}

// Forwarded returns the request-scoped credential when it belongs to
// sessionID.
func Forwarded(sessionID string) Provider {
	return ProviderFunc(func(ctx context.Context) (*Credential, error) {
		c, ok := FromContext(ctx)
		if !ok || c.SessionID != sessionID || !c.Valid() {
			return nil, nil
		}
		out := *c
		return &out, nil
	})
}
