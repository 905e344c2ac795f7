package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jw6ventures/powerchat/internal/config"
	"golang.org/x/oauth2"
)

// Identity is what the identity provider asserts about a user.
type Identity struct {
	Subject string
	Email   string
}

// Provider is the OIDC collaborator.
type Provider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (Identity, error)
}

// OIDCProvider performs the authorization code flow against a discovered
// OpenID Connect issuer.
type OIDCProvider struct {
	oauth2   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

const discoverySuffix = "/.well-known/openid-configuration"

func NewOIDCProvider(ctx context.Context, cfg *config.Config) (*OIDCProvider, error) {
	issuer := cfg.OAuth.IssuerURL
	if issuer == "" {
		issuer = strings.TrimSuffix(cfg.OAuth.DiscoveryURL, discoverySuffix)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return &OIDCProvider{
		oauth2: &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  strings.TrimRight(cfg.BaseURL, "/") + cfg.OAuth.RedirectPath,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OAuth.ClientID}),
	}, nil
}

func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	return p.oauth2.AuthCodeURL(state, oidc.Nonce(nonce))
}

func (p *OIDCProvider) Exchange(ctx context.Context, code, nonce string) (Identity, error) {
	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return Identity{}, errors.New("no id_token in token response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	if idToken.Nonce != nonce {
		return Identity{}, errors.New("id token nonce mismatch")
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("parse claims: %w", err)
	}
	if claims.Email == "" {
		return Identity{}, errors.New("id token has no email claim")
	}
	return Identity{Subject: idToken.Subject, Email: claims.Email}, nil
}
