package network

import (
	"context"
	"net/http"
	"sync"

	"github.com/microsoft/PackageUploader-sub002/errkind"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "credential"

// AuthenticatedClient attaches a cached bearer credential to every request.
// When a request is rejected with 401 or 403 the credential is refreshed once
// and the request is retried once; a second rejection is returned to the caller.
//
// Concurrent callers share one in-flight refresh, and a caller whose rejected
// credential was already replaced by another caller reuses the replacement.
type AuthenticatedClient struct {
	client  *Client
	source  CredentialSource
	headers map[string]string

	mu      sync.Mutex
	token   *oauth2.Token
	refresh singleflight.Group
}

// NewAuthenticatedClient wraps client so that requests carry credentials from source.
// headers are added to every request.
func NewAuthenticatedClient(client *Client, source CredentialSource, headers map[string]string) *AuthenticatedClient {
	return &AuthenticatedClient{
		client:  client,
		source:  source,
		headers: headers,
	}
}

// Get issues an authenticated GET and decodes the JSON response into out.
func (a *AuthenticatedClient) Get(ctx context.Context, url string, out interface{}) error {
	_, err := a.Do(ctx, Request{Method: http.MethodGet, URL: url}, out)
	return err
}

// Post issues an authenticated POST and decodes the JSON response into out.
func (a *AuthenticatedClient) Post(ctx context.Context, url string, body, out interface{}) error {
	_, err := a.Do(ctx, Request{Method: http.MethodPost, URL: url, Body: body}, out)
	return err
}

// Put issues an authenticated PUT and decodes the JSON response into out.
func (a *AuthenticatedClient) Put(ctx context.Context, url string, body, out interface{}) error {
	_, err := a.Do(ctx, Request{Method: http.MethodPut, URL: url, Body: body}, out)
	return err
}

// Do performs an authenticated request with at most one refresh-and-retry cycle.
func (a *AuthenticatedClient) Do(ctx context.Context, r Request, out interface{}) (*Response, error) {
	token, err := a.credential(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(ctx, a.authorize(r, token), out)
	if !errkind.Is(err, errkind.Auth) {
		return resp, err
	}

	a.client.logger.Warnf("%s %s was rejected (HTTP %d), refreshing credential",
		r.Method, a.client.redactor.RedactURL(r.URL), errkind.StatusOf(err))

	token, err = a.refreshAfter(ctx, token)
	if err != nil {
		return nil, err
	}
	return a.client.Do(ctx, a.authorize(r, token), out)
}

// Invalidate drops the cached credential so that the next request fetches a new one.
func (a *AuthenticatedClient) Invalidate() {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
}

func (a *AuthenticatedClient) authorize(r Request, token *oauth2.Token) Request {
	headers := make(map[string]string, len(r.Headers)+len(a.headers)+1)
	for k, v := range a.headers {
		headers[k] = v
	}
	for k, v := range r.Headers {
		headers[k] = v
	}
	headers["Authorization"] = token.Type() + " " + token.AccessToken
	r.Headers = headers
	return r
}

func (a *AuthenticatedClient) credential(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	token := a.token
	a.mu.Unlock()

	if token.Valid() {
		return token, nil
	}
	return a.refreshAfter(ctx, token)
}

// refreshAfter replaces stale with a newly fetched credential, unless another
// caller already replaced it. The shared fetch is detached from ctx so that one
// caller giving up does not fail the others; each caller stops waiting on its
// own ctx.
func (a *AuthenticatedClient) refreshAfter(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error) {
	fetchCtx := context.WithoutCancel(ctx)
	results := a.refresh.DoChan(refreshKey, func() (interface{}, error) {
		a.mu.Lock()
		current := a.token
		a.mu.Unlock()
		if current != nil && current != stale && current.Valid() {
			return current, nil
		}

		token, err := a.source.Fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		a.client.redactor.Add(token.AccessToken)

		a.mu.Lock()
		a.token = token
		a.mu.Unlock()
		return token, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, errkind.New(errkind.Auth, "fetch credential", res.Err)
		}
		return res.Val.(*oauth2.Token), nil
	}
}
