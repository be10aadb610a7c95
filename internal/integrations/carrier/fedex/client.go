package fedex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/KasTrack/internal/cache"
	"github.com/pkg/errors"
)

const (
	tokenCacheKey     = "fedex:token"
	defaultTokenTTL   = time.Hour
	tokenRenewBefore  = time.Minute
	maxResponseBytes  = 8 << 20
	defaultAPIBaseURL = "https://apis-sandbox.fedex.com"
)

// Client calls the FedEx Track API. The OAuth bearer token is shared through
// the token cache until shortly before it expires.
type Client struct {
	baseURL   string
	apiKey    string
	secretKey string
	tokens    cache.BytesCache
	httpc     *http.Client
	now       func() time.Time
}

func New(baseURL, apiKey, secretKey string, tokens cache.BytesCache) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if tokens == nil {
		tokens = newMemoryTokens(time.Now)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		secretKey: secretKey,
		tokens:    tokens,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

type trackRequest struct {
	TrackingInfo         []trackingInfo `json:"trackingInfo"`
	IncludeDetailedScans bool           `json:"includeDetailedScans"`
}

type trackingInfo struct {
	TrackingNumberInfo struct {
		TrackingNumber string `json:"trackingNumber"`
	} `json:"trackingNumberInfo"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) Track(ctx context.Context, trackingNumber string) ([]byte, error) {
	if c.apiKey == "" || c.secretKey == "" {
		return nil, errors.New("fedex api credentials are not configured")
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var info trackingInfo
	info.TrackingNumberInfo.TrackingNumber = trackingNumber
	body, err := json.Marshal(trackRequest{
		TrackingInfo:         []trackingInfo{info},
		IncludeDetailedScans: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal track request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/track/v1/trackingnumbers", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-locale", "en_US")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.tokens.Delete(ctx, tokenCacheKey); err != nil {
			slog.Warn("drop fedex token", "error", err.Error())
		}
		return nil, fmt.Errorf("fedex track http %d: token rejected", resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fedex track http %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return b, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	b, ok, err := c.tokens.Get(ctx, tokenCacheKey)
	if err != nil {
		slog.Warn("fedex token cache get", "error", err.Error())
	}
	if ok && len(b) > 0 {
		return string(b), nil
	}

	token, ttl, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	if err := c.tokens.Set(ctx, tokenCacheKey, []byte(token), ttl); err != nil {
		slog.Warn("fedex token cache set", "error", err.Error())
	}
	return token, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.apiKey)
	form.Set("client_secret", c.secretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, errors.Wrap(err, "new token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, errors.Wrap(err, "do token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", 0, fmt.Errorf("fedex auth http %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, errors.Wrap(err, "decode token")
	}
	if tr.AccessToken == "" {
		return "", 0, errors.New("fedex auth: empty access_token")
	}
	return tr.AccessToken, tokenTTL(tr.AccessToken, tr.ExpiresIn, c.now()), nil
}
