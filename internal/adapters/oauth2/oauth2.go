// Package oauth2 implements the OAuth2 provider external adapter of
// spec.md §4.7: exchange_code(code, ak, sk) -> {open_id, access_token,
// refresh?}; profile(access_token) -> {name}. ak/sk here are the
// CertConf-configured client id/secret for one tenant's provider
// binding (spec.md §4.2's "OAuth2 auto-provisioning gated by tenant
// .account_self_reg").
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/ideal-world/bios/internal/core/bioserr"
)

// Endpoint names a provider's authorization/token/profile URLs, set
// once per CertConf kind (e.g. "github", "google", a self-hosted IdP).
type Endpoint struct {
	AuthURL    string
	TokenURL   string
	ProfileURL string
	Scopes     []string
}

// ExchangeResult is the normalized result spec.md §4.7 names.
type ExchangeResult struct {
	OpenId      string
	AccessToken string
	RefreshToken string
}

// Profile is the normalized profile result spec.md §4.7 names.
type Profile struct {
	Name string
}

// Provider drives one OAuth2 endpoint's code-exchange and profile
// fetch, parameterized per call by the tenant's ak/sk (client
// id/secret) so one Provider instance serves every tenant bound to
// the same upstream IdP.
type Provider struct {
	Endpoint    Endpoint
	RedirectURL string
	HTTPClient  *http.Client
}

func (p *Provider) config(ak, sk string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     ak,
		ClientSecret: sk,
		RedirectURL:  p.RedirectURL,
		Scopes:       p.Endpoint.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.Endpoint.AuthURL,
			TokenURL: p.Endpoint.TokenURL,
		},
	}
}

// ExchangeCode trades an authorization code for tokens.
func (p *Provider) ExchangeCode(ctx context.Context, code, ak, sk string) (ExchangeResult, error) {
	ctx = p.withClient(ctx)

	tok, err := p.config(ak, sk).Exchange(ctx, code)
	if err != nil {
		return ExchangeResult{}, bioserr.UpstreamError{Adapter: "oauth2", Code: "502-iam-oauth2-exchange", Message: err.Error(), Err: err}
	}

	openID, _ := tok.Extra("open_id").(string)

	return ExchangeResult{
		OpenId:       openID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// Profile fetches the provider's profile endpoint with accessToken.
func (p *Provider) Profile(ctx context.Context, accessToken string) (Profile, error) {
	client := p.httpClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint.ProfileURL, nil)
	if err != nil {
		return Profile{}, err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return Profile{}, bioserr.UpstreamError{Adapter: "oauth2", Code: "502-iam-oauth2-profile", Message: err.Error(), Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Profile{}, bioserr.UpstreamError{Adapter: "oauth2", Code: "502-iam-oauth2-profile", Message: fmt.Sprintf("status %d: %s", resp.StatusCode, body)}
	}

	var raw struct {
		Name string `json:"name"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Profile{}, bioserr.UpstreamError{Adapter: "oauth2", Code: "502-iam-oauth2-profile-decode", Message: err.Error(), Err: err}
	}

	return Profile{Name: raw.Name}, nil
}

func (p *Provider) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}

	return http.DefaultClient
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient())
}
