package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// ClientCred fetches and caches client-credentials access tokens.
type ClientCred struct {
	mu    sync.Mutex
	ctx   context.Context
	conf  Conf
	src   oauth2.TokenSource
	token *oauth2.Token
}

// NewClientCred returns a ClientCred whose token requests use ctx.
func NewClientCred(ctx context.Context, conf Conf) *ClientCred {
	cc := conf.toOauth2Config()
	return &ClientCred{ctx: ctx, conf: conf, src: cc.TokenSource(ctx)}
}

// GetToken returns a valid access token, requesting a new one when the
// cached token has expired.
func (c *ClientCred) GetToken() (string, error) {
	tok, err := c.current()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// ForceRefresh discards the cached token and requests a new one.
func (c *ClientCred) ForceRefresh() (string, error) {
	c.mu.Lock()
	cc := c.conf.toOauth2Config()
	c.src = cc.TokenSource(c.ctx)
	c.token = nil
	c.mu.Unlock()
	return c.GetToken()
}

// SetAuthHeader sets the bearer Authorization header on r.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	tok, err := c.current()
	if err != nil {
		return err
	}
	tok.SetAuthHeader(r)
	return nil
}

// MQTTCredentials returns a paho credentials provider that presents the
// access token as the password. An empty password is sent when no token
// can be obtained so the broker rejects the connection.
func (c *ClientCred) MQTTCredentials(username string, onErr func(error)) func() (string, string) {
	return func() (string, string) {
		tok, err := c.GetToken()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return username, ""
		}
		return username, tok
	}
}

func (c *ClientCred) current() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.token.Valid() {
		return c.token, nil
	}
	tok, err := c.src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	c.token = tok
	return tok, nil
}
