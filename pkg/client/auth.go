package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultOAuthTokenURL is the Cribl Cloud token endpoint used when no
// explicit token URL is configured.
const DefaultOAuthTokenURL = "https://login.cribl.cloud/oauth/token"

// authorizer injects the Authorization header into outgoing requests.
type authorizer interface {
	apply(req *http.Request) error
}

// bearerAuth carries a static operator-supplied token.
type bearerAuth struct {
	token string
}

func (b bearerAuth) apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.token)
	return nil
}

// oauthAuth lazily obtains a bearer token via the client-credentials grant.
// The token source caches the token and refreshes it 30s before expiry.
type oauthAuth struct {
	source oauth2.TokenSource
}

func newOAuthAuth(ctx context.Context, clientID, clientSecret, tokenURL string) *oauthAuth {
	if tokenURL == "" {
		tokenURL = DefaultOAuthTokenURL
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return &oauthAuth{
		source: oauth2.ReuseTokenSourceWithExpiry(nil, cfg.TokenSource(ctx), 30*time.Second),
	}
}

func (o *oauthAuth) apply(req *http.Request) error {
	tok, err := o.source.Token()
	if err != nil {
		return fmt.Errorf("oauth token refresh: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}
