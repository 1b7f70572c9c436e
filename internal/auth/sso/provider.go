// Package sso implements enterprise single sign-on over OpenID Connect. It
// handles discovery, the authorization-code exchange, and ID token
// verification; on success the caller provisions a local user and hands out a
// first-party access token, so SSO never bypasses the service's own issuer.
package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/compai/comp-api/internal/config"
)

// UserInfo is the identity extracted from a verified ID token.
type UserInfo struct {
	Subject string
	Email   string
	Name    string
}

// Provider wraps the upstream OIDC identity provider.
type Provider struct {
	verifier *oidc.IDTokenVerifier
	config   *oauth2.Config
	provider *oidc.Provider
}

// NewProvider initializes the provider, performing OIDC discovery against the
// configured issuer. The context bounds the discovery request.
func NewProvider(ctx context.Context, cfg config.SSOConfig) (*Provider, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("sso is not enabled")
	}
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("sso issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("sso client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("sso client secret is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create sso provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	return &Provider{
		verifier: verifier,
		config:   oauth2Config,
		provider: provider,
	}, nil
}

// AuthURL returns the authorization URL to redirect the browser to. The state
// value must be verified on callback.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for tokens and verifies the ID token
// in one step, returning the asserted identity.
func (p *Provider) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("token response contains no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract id token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("id token carries no email claim")
	}

	return &UserInfo{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
