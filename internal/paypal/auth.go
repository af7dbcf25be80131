package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/donaldgifford/tap-paypal/internal/metrics"
)

// accessToken is an immutable token value. A zero ttl with bounded=false
// never expires.
type accessToken struct {
	value    string
	issuedAt time.Time
	ttl      time.Duration
	bounded  bool
}

func (t accessToken) expired(now time.Time) bool {
	if t.value == "" {
		return true
	}
	if !t.bounded {
		return false
	}
	return !now.Before(t.issuedAt.Add(t.ttl))
}

// OAuthTokenProvider implements TokenProvider using the PayPal OAuth2 client
// credentials flow. It caches the token until it expires. Refreshes are
// single-flight: concurrent callers share one in-flight exchange.
type OAuthTokenProvider struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *http.Client
	log          *slog.Logger

	mu      sync.Mutex
	token   accessToken
	group   singleflight.Group
	nowFunc func() time.Time // for testing
}

// OAuthOption configures the OAuthTokenProvider.
type OAuthOption func(*OAuthTokenProvider)

// WithTokenURL overrides the token endpoint derived from the API host.
func WithTokenURL(u string) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.tokenURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.client = c
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.nowFunc = f
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(l *slog.Logger) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.log = l
	}
}

// NewOAuthTokenProvider creates a token provider for the API host baseURL.
func NewOAuthTokenProvider(
	clientID, clientSecret, baseURL string,
	opts ...OAuthOption,
) *OAuthTokenProvider {
	p := &OAuthTokenProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     strings.TrimRight(baseURL, "/") + tokenPath,
		client:       &http.Client{Timeout: 10 * time.Second},
		log:          slog.New(slog.DiscardHandler),
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int64 `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token returns a valid OAuth2 access token, refreshing if necessary.
func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	if tok, ok := p.current(); ok {
		return tok, nil
	}

	// The shared exchange outlives any one caller's cancellation; it is
	// bounded by the HTTP client timeout instead. A canceled caller stops
	// waiting and gets its own context error.
	ch := p.group.DoChan("token", func() (any, error) {
		// A caller that queued behind a finished refresh reuses its token.
		if tok, ok := p.current(); ok {
			return tok, nil
		}
		return p.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil //nolint:errcheck,forcetypeassert // refresh only returns strings
	}
}

func (p *OAuthTokenProvider) current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token.expired(p.nowFunc()) {
		return "", false
	}
	return p.token.value, true
}

func (p *OAuthTokenProvider) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type": {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.tokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("creating token request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	issuedAt := p.nowFunc()

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.TokenRefreshFailuresTotal.Inc()
		return "", &AuthError{Err: fmt.Errorf("executing token request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TokenRefreshFailuresTotal.Inc()
		return "", &AuthError{Err: fmt.Errorf("reading token response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.TokenRefreshFailuresTotal.Inc()
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		metrics.TokenRefreshFailuresTotal.Inc()
		return "", &AuthError{Err: fmt.Errorf("parsing token response: %w", err)}
	}
	if tokenResp.AccessToken == "" {
		metrics.TokenRefreshFailuresTotal.Inc()
		return "", &AuthError{Err: fmt.Errorf("parsing token response: empty access_token")}
	}

	tok := accessToken{value: tokenResp.AccessToken, issuedAt: issuedAt}
	if tokenResp.ExpiresIn != nil {
		tok.bounded = true
		tok.ttl = time.Duration(*tokenResp.ExpiresIn) * time.Second
	} else {
		p.log.Debug("no expires_in in token response, token treated as non-expiring")
	}

	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()

	metrics.TokenRefreshesTotal.Inc()
	p.log.Info("oauth token refreshed", "expires_in", tok.ttl, "bounded", tok.bounded)

	return tok.value, nil
}
