package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"steemauth/internal/domain"
)

const (
	// DefaultURL is the public Steem API node.
	DefaultURL = "https://api.steemit.com"

	// DefaultExpiration is how far past the head block time a transaction expires.
	DefaultExpiration = 60 * time.Second
)

// SteemChainID is the chain id of the Steem main network.
var SteemChainID = strings.Repeat("00", 32)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithExpiration sets the transaction expiration window.
func WithExpiration(d time.Duration) Option {
	return func(c *Client) { c.expiration = d }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "chain").Logger() }
}

// Client calls a node over JSON-RPC 2.0.
type Client struct {
	url        string
	chainID    []byte
	http       *http.Client
	expiration time.Duration
	log        zerolog.Logger
	seq        uint64
}

// NewClient returns a client for the node at url. chainID is the hex chain id
// mixed into every signature digest.
func NewClient(url, chainID string, opts ...Option) (*Client, error) {
	id, err := hex.DecodeString(chainID)
	if err != nil || len(id) != 32 {
		return nil, fmt.Errorf("invalid chain id %q", chainID)
	}
	c := &Client{
		url:        url,
		chainID:    id,
		http:       &http.Client{Timeout: 30 * time.Second},
		expiration: DefaultExpiration,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetAccounts returns the profiles of the names that exist, in request order.
func (c *Client) GetAccounts(ctx context.Context, names []domain.Username) ([]domain.ChainAccount, error) {
	list := make([]string, 0, len(names))
	for _, n := range names {
		list = append(list, n.String())
	}
	var accounts []domain.ChainAccount
	if err := c.call(ctx, "condenser_api.get_accounts", []any{list}, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	id := atomic.AddUint64(&c.seq, 1)
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	c.log.Debug().Str("method", method).Dur("took", time.Since(start)).Int("status", resp.StatusCode).Msg("rpc call")

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("rpc %s: %s", method, resp.Status)
	}
	var res response
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("rpc %s: could not decode response: %w", method, err)
	}
	if res.Error != nil {
		return res.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Result, out); err != nil {
		return fmt.Errorf("rpc %s: could not decode result: %w", method, err)
	}
	return nil
}

// Compile-time assertion that Client implements domain.ChainClient.
var _ domain.ChainClient = (*Client)(nil)
