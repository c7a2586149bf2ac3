package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// ErrNoOAuthCredentials means neither an OAuth client nor a token is configured.
var ErrNoOAuthCredentials = errors.New("no OAuth credentials configured")

// OAuthClientJSON returns the OAuth client definition from
// GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE.
func OAuthClientJSON() ([]byte, error) {
	return envOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
}

// OAuthConfig builds the installed-app flow config for the Sheets scope.
func OAuthConfig(clientJSON []byte, redirectURL string) (*oauth2.Config, error) {
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	cfg.RedirectURL = redirectURL
	return cfg, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// oauthTokenSource returns a refreshing token source for a user that went
// through the installed-app flow. It reports ErrNoOAuthCredentials when
// nothing OAuth related is configured.
func oauthTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientJSON, clientErr := OAuthClientJSON()
	tokenJSON, tokenErr := envOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	switch {
	case errors.Is(clientErr, errUnset) && errors.Is(tokenErr, errUnset):
		return nil, ErrNoOAuthCredentials
	case errors.Is(clientErr, errUnset):
		return nil, errors.New("either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided")
	case errors.Is(tokenErr, errUnset):
		return nil, errors.New("either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided")
	case clientErr != nil:
		return nil, clientErr
	case tokenErr != nil:
		return nil, tokenErr
	}

	cfg, err := OAuthConfig(clientJSON, "")
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return cfg.TokenSource(ctx, &tok), nil
}

var errUnset = errors.New("unset")

// envOrFile reads inline content from jsonVar, or the file named by fileVar.
func envOrFile(jsonVar, fileVar string) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv(jsonVar)); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv(fileVar))
	if path == "" {
		return nil, errUnset
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileVar, err)
	}
	return data, nil
}

// newHTTPClientWithPooling is the transport used for token refreshes and
// Sheets calls made on behalf of an OAuth user.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}
