package steemlogin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"steemauth/internal/domain"
)

// Default endpoints of the public SteemLogin deployment.
const (
	DefaultBaseURL = "https://steemlogin.com"
	DefaultAPIURL  = "https://api.steemlogin.com"
)

// DefaultScopes are requested by LoginURL when the caller passes none.
var DefaultScopes = []string{"login", "vote", "comment", "custom_json"}

// APIError is an error body returned by the SteemLogin API.
type APIError struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("steemlogin %s: %s", e.Code, e.Description)
	}
	if e.Code != "" {
		return "steemlogin " + e.Code
	}
	return fmt.Sprintf("steemlogin status %d", e.Status)
}

// Is maps API error codes to domain errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrInvalidScope:
		return e.Code == "invalid_scope"
	case domain.ErrInvalidCredential:
		return e.Status == http.StatusUnauthorized || e.Code == "invalid_grant" || e.Code == "unauthorized_access"
	default:
		return false
	}
}

// Client talks to SteemLogin on behalf of one registered app.
type Client struct {
	BaseURL     string
	APIURL      string
	App         string
	CallbackURL string
	HTTP        *http.Client

	log zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the URL signing and authorization links point to.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.BaseURL = strings.TrimRight(u, "/") }
}

// WithAPIURL sets the API endpoint.
func WithAPIURL(u string) Option {
	return func(c *Client) { c.APIURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.HTTP = h }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "steemlogin").Logger() }
}

// New returns a client for app, redirecting back to callbackURL after
// authorization.
func New(app, callbackURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:     DefaultBaseURL,
		APIURL:      DefaultAPIURL,
		App:         app,
		CallbackURL: callbackURL,
		HTTP:        http.DefaultClient,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me returns the profile the access token belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (domain.ThirdPartyProfile, error) {
	var out struct {
		User    domain.Username      `json:"user"`
		Name    domain.Username      `json:"name"`
		Account *domain.ChainAccount `json:"account"`
		Scope   []string             `json:"scope"`
	}
	if err := c.post(ctx, "/api/me", accessToken, struct{}{}, &out); err != nil {
		return domain.ThirdPartyProfile{}, err
	}

	profile := domain.ThirdPartyProfile{Name: out.User, Account: out.Account, Scope: out.Scope}
	if profile.Name == "" {
		profile.Name = out.Name
	}
	return profile, nil
}

// Broadcast asks SteemLogin to sign and broadcast ops with the token's grant.
// A token whose scope does not cover the operations fails with an error
// matching domain.ErrInvalidScope.
func (c *Client) Broadcast(
	ctx context.Context,
	accessToken string,
	ops []domain.Operation,
) (domain.BroadcastResult, error) {
	in := struct {
		Operations []domain.Operation `json:"operations"`
	}{Operations: ops}
	var out struct {
		Result domain.BroadcastResult `json:"result"`
	}
	if err := c.post(ctx, "/api/broadcast", accessToken, in, &out); err != nil {
		return domain.BroadcastResult{}, err
	}
	return out.Result, nil
}

// SignURL builds the link where the user signs operation with their own keys.
// Scalar fields are passed as is; arrays and objects are JSON-encoded.
func (c *Client) SignURL(operation string, payload domain.Payload) (string, error) {
	params := url.Values{}
	for key, value := range payload {
		s, ok, err := param(value)
		if err != nil {
			return "", fmt.Errorf("could not encode field %s: %w", key, err)
		}
		if ok {
			params.Set(key, s)
		}
	}

	link := c.BaseURL + "/sign/" + url.PathEscape(operation)
	if len(params) > 0 {
		link += "?" + params.Encode()
	}
	return link, nil
}

// LoginURL builds the authorization link for scopes. state is echoed back to
// the callback.
func (c *Client) LoginURL(scopes []string, state string) string {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	params := url.Values{}
	params.Set("client_id", c.App)
	params.Set("redirect_uri", c.CallbackURL)
	params.Set("scope", strings.Join(scopes, ","))
	if state != "" {
		params.Set("state", state)
	}
	return c.BaseURL + "/oauth2/authorize?" + params.Encode()
}

func param(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case int, int32, int64, uint, uint32, uint64, json.Number:
		return fmt.Sprint(v), true, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	}
}

func (c *Client) post(ctx context.Context, path, token string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("steemlogin post %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("api call")

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Description = resp.Status
		}
		return apiErr
	}

	// Some failures come back with a 200 and an error body.
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("steemlogin post %s: %w", path, err)
	}
	var apiErr APIError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.Status = resp.StatusCode
		return &apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("steemlogin post %s: invalid response: %w", path, err)
	}
	return nil
}

// Compile-time assertion that Client implements domain.ThirdPartySigner.
var _ domain.ThirdPartySigner = (*Client)(nil)
