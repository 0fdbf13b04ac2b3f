// Package tollgate is a Go client for the tollgate streaming gateway.
package tollgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/service"
)

// APIError is a non-2xx answer from the gateway
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tollgate: HTTP %d", e.Status)
	}
	return fmt.Sprintf("tollgate: HTTP %d: %s", e.Status, e.Message)
}

// Signer signs a challenge message and returns the hex signature
type Signer func(message string) (string, error)

// Client talks to a running gateway
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption customises a Client
type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// NewClient creates a client for the gateway at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health returns nil when the gateway answers its liveness probe
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("tollgate: gateway reported not ok")
	}
	return nil
}

// Nonce requests a login challenge for address
func (c *Client) Nonce(ctx context.Context, address string) (core.Challenge, error) {
	var ch core.Challenge
	err := c.getJSON(ctx, "/auth/nonce?addr="+url.QueryEscape(address), &ch)
	return ch, err
}

// Verify exchanges a signed challenge for a session token
func (c *Client) Verify(ctx context.Context, address, signature, nonce string) (core.IssuedSession, error) {
	body, err := json.Marshal(map[string]string{
		"addr":      address,
		"signature": signature,
		"nonce":     nonce,
	})
	if err != nil {
		return core.IssuedSession{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/verify", bytes.NewReader(body))
	if err != nil {
		return core.IssuedSession{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var issued core.IssuedSession
	err = c.doJSON(req, &issued)
	return issued, err
}

// Login runs Nonce, sign and Verify in one call
func (c *Client) Login(ctx context.Context, address string, sign Signer) (core.IssuedSession, error) {
	ch, err := c.Nonce(ctx, address)
	if err != nil {
		return core.IssuedSession{}, err
	}
	sig, err := sign(ch.Message)
	if err != nil {
		return core.IssuedSession{}, fmt.Errorf("failed to sign challenge: %w", err)
	}
	return c.Verify(ctx, address, sig, ch.Nonce)
}

// Track reads the public sale data of a token id
func (c *Client) Track(ctx context.Context, id string) (service.TrackInfo, error) {
	var info service.TrackInfo
	err := c.getJSON(ctx, "/tracks/"+url.PathEscape(id), &info)
	return info, err
}

// Stream opens the media of a token id. rangeHeader is optional. Origin
// statuses such as 416 are returned as a response, gateway refusals as an
// *APIError. The caller must close the response body.
func (c *Client) Stream(ctx context.Context, token, id, rangeHeader string) (*http.Response, error) {
	u := c.baseURL + "/stream/" + url.PathEscape(id) + "?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	if apiErr := decodeAPIError(resp); apiErr != nil {
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if apiErr := decodeAPIError(resp); apiErr != nil {
			return apiErr
		}
		return &APIError{Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tollgate: failed to decode response: %w", err)
	}
	return nil
}

// decodeAPIError returns nil when the body is not the gateway's error shape,
// leaving the response untouched for the caller. Otherwise it closes the body.
func decodeAPIError(resp *http.Response) *APIError {
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}
