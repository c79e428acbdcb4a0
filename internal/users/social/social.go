// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package social adapts an OpenID Connect provider to [auth.SocialProvider].

It owns the protocol exchange only: building the authorization URL, trading
the code for tokens and verifying the ID token. What happens with the verified
identity is decided by [auth.Service.SocialLogin].
*/
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/users/auth"
)

// DefaultProviderName prefixes external ids when the configuration names no provider.
const DefaultProviderName = "oidc"

// Config describes the OIDC client registration.
type Config struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Provider runs the authorization code flow against one OIDC issuer.
type Provider struct {
	name     string
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ auth.SocialProvider = (*Provider)(nil)

/*
NewProvider discovers the issuer and prepares the client.

Discovery is a network call, so it runs once at startup.

Returns:
  - *Provider: Ready to serve redirects and callbacks
  - error: Discovery failures or incomplete configuration
*/
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, errors.New("social: issuer url and client id are required")
	}

	discovered, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("social: failed to discover %s: %w", cfg.IssuerURL, err)
	}

	return NewWithVerifier(cfg, discovered.Endpoint(), discovered.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

// NewWithVerifier builds a provider from an explicit endpoint and ID token verifier.
func NewWithVerifier(cfg Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) *Provider {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultProviderName
	}

	return &Provider{
		name: name,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: verifier,
	}
}

// AuthCodeURL returns the provider URL the browser is redirected to.
func (provider *Provider) AuthCodeURL(state string) string {
	return provider.oauth.AuthCodeURL(state)
}

// idClaims are the ID token claims the adapter consumes.
type idClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
}

/*
Identify trades an authorization code for a verified identity.

An explicit email_verified=false is rejected. A missing claim passes with
EmailVerified unset, which only allows provisioning a new account.

Returns:
  - auth.SocialIdentity: Provider name, subject and email
  - error: apperr.Unauthorized for rejected codes or tokens
*/
func (provider *Provider) Identify(ctx context.Context, code string) (auth.SocialIdentity, error) {
	if strings.TrimSpace(code) == "" {
		return auth.SocialIdentity{}, apperr.Unauthorized("Social login code is missing")
	}

	token, err := provider.oauth.Exchange(ctx, code)
	if err != nil {
		return auth.SocialIdentity{}, unauthorized("Social login code was rejected", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return auth.SocialIdentity{}, apperr.Unauthorized("Social provider returned no ID token")
	}

	idToken, err := provider.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return auth.SocialIdentity{}, unauthorized("Social ID token failed verification", err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return auth.SocialIdentity{}, unauthorized("Social ID token claims are unreadable", err)
	}

	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return auth.SocialIdentity{}, apperr.Unauthorized("Social account email is not verified")
	}

	return auth.SocialIdentity{
		Provider: provider.name,
		Subject:  idToken.Subject,
		Email:    claims.Email,

		EmailVerified: claims.EmailVerified != nil && *claims.EmailVerified,
	}, nil
}

func unauthorized(message string, cause error) *apperr.AppError {
	appError := apperr.Unauthorized(message)
	appError.Cause = cause
	return appError
}
