// Package oauth verifies applicants against an OpenID Connect identity
// provider using the authorization code flow.
package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
	"golang.org/x/oauth2"
)

// Identity is what the provider asserts about the signed-in person.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Provider is the identity provider used by the sign-in flow.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Config configures a GoogleProvider. Endpoint URLs default to Google's.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	JWKSURL      string
	Issuers      []string
	HostedDomain string
	HTTPClient   *http.Client
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	HostedDomain  string `json:"hd"`
	jwt.RegisteredClaims
}

type jwks struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// GoogleProvider exchanges codes with an OIDC provider and verifies the
// returned ID token against the provider's published RSA keys.
type GoogleProvider struct {
	oauth        *oauth2.Config
	jwksURL      string
	issuers      []string
	hostedDomain string
	httpClient   *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	keyTTL    time.Duration
}

// NewGoogleProvider creates a provider from cfg
func NewGoogleProvider(cfg Config) *GoogleProvider {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   lo.CoalesceOrEmpty(cfg.AuthURL, "https://accounts.google.com/o/oauth2/v2/auth"),
				TokenURL:  lo.CoalesceOrEmpty(cfg.TokenURL, "https://oauth2.googleapis.com/token"),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		jwksURL:      lo.CoalesceOrEmpty(cfg.JWKSURL, "https://www.googleapis.com/oauth2/v3/certs"),
		issuers:      cfg.Issuers,
		hostedDomain: cfg.HostedDomain,
		httpClient:   httpClient,
		keyTTL:       time.Hour,
	}
}

var _ Provider = (*GoogleProvider)(nil)

// AuthCodeURL returns the provider URL the browser is redirected to
func (p *GoogleProvider) AuthCodeURL(state string) string {
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")}
	if p.hostedDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("hd", p.hostedDomain))
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a verified identity
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, errors.New("no id_token in token response")
	}
	return p.VerifyIDToken(ctx, raw)
}

// VerifyIDToken checks signature, audience, issuer and expiry of an ID token
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, raw string) (*Identity, error) {
	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return p.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(p.oauth.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid id token: %w", err)
	}

	if len(p.issuers) > 0 && !lo.Contains(p.issuers, claims.Issuer) {
		return nil, fmt.Errorf("invalid id token: unexpected issuer %q", claims.Issuer)
	}
	if p.hostedDomain != "" && !strings.EqualFold(claims.HostedDomain, p.hostedDomain) {
		return nil, fmt.Errorf("invalid id token: account is not in domain %q", p.hostedDomain)
	}

	return &Identity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          strings.TrimSpace(claims.Name),
	}, nil
}

// key returns the public key for kid, refetching the key set when kid is
// unknown or the cache is stale.
func (p *GoogleProvider) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	p.mu.RLock()
	k, ok := p.keys[kid]
	fresh := time.Since(p.fetchedAt) < p.keyTTL
	p.mu.RUnlock()
	if ok && fresh {
		return k, nil
	}

	keys, err := p.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.keys = keys
	p.fetchedAt = time.Now()
	p.mu.Unlock()

	if k, ok := keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("signing key %q not found", kid)
}

func (p *GoogleProvider) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch signing keys: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch signing keys: unexpected status %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode signing keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "" && k.Kty != "RSA" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}
	}
	return keys, nil
}
