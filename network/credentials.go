package network

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

// DefaultIngestionScope is requested for Ingestion API tokens.
const DefaultIngestionScope = "https://api.partner.microsoft.com/.default"

// CredentialSource fetches a new bearer credential on every call.
type CredentialSource interface {
	Fetch(ctx context.Context) (*oauth2.Token, error)
}

// ClientSecretCredentials fetches Azure AD tokens with the client credentials grant.
type ClientSecretCredentials struct {
	config     *clientcredentials.Config
	httpClient *http.Client
}

// NewClientSecretCredentials creates a credential source for an Azure AD application.
func NewClientSecretCredentials(tenantID, clientID, clientSecret string, scopes ...string) *ClientSecretCredentials {
	if len(scopes) == 0 {
		scopes = []string{DefaultIngestionScope}
	}
	return &ClientSecretCredentials{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     microsoft.AzureADEndpoint(tenantID).TokenURL,
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
}

// WithTokenURL overrides the token endpoint.
func (c *ClientSecretCredentials) WithTokenURL(tokenURL string) *ClientSecretCredentials {
	c.config.TokenURL = tokenURL
	return c
}

// WithHTTPClient sets the client used to reach the token endpoint.
func (c *ClientSecretCredentials) WithHTTPClient(client *http.Client) *ClientSecretCredentials {
	c.httpClient = client
	return c
}

// Fetch requests a new token. The token endpoint is never served from a cache.
func (c *ClientSecretCredentials) Fetch(ctx context.Context) (*oauth2.Token, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	return c.config.Token(ctx)
}

// StaticCredentials always returns the same access token, e.g. a
// short-lived upload token that cannot be refreshed.
type StaticCredentials struct {
	AccessToken string
}

// Fetch returns a new token value holding the static access token.
func (s StaticCredentials) Fetch(context.Context) (*oauth2.Token, error) {
	if s.AccessToken == "" {
		return nil, errors.New("no access token provided")
	}
	return &oauth2.Token{AccessToken: s.AccessToken, TokenType: "Bearer"}, nil
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(ctx context.Context) (*oauth2.Token, error)

// Fetch calls f.
func (f CredentialFunc) Fetch(ctx context.Context) (*oauth2.Token, error) {
	return f(ctx)
}
