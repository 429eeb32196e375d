package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"steemauth/internal/crypto"
	"steemauth/internal/domain"
)

// CachedClient caches account profiles for a short time. Any successful
// broadcast drops the cache, since balances and keys may have changed.
type CachedClient struct {
	next  domain.ChainClient
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedClient wraps next with a cache holding up to size profiles.
func NewCachedClient(next domain.ChainClient, size int64, ttl time.Duration) (*CachedClient, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("could not initialize cache: %w", err)
	}

	c := CachedClient{
		next:  next,
		cache: cache,
		ttl:   ttl,
	}

	return &c, nil
}

// GetAccounts serves cached profiles and fetches the rest.
func (c *CachedClient) GetAccounts(ctx context.Context, names []domain.Username) ([]domain.ChainAccount, error) {
	found := make(map[domain.Username]domain.ChainAccount, len(names))
	var missing []domain.Username
	for _, name := range names {
		v, ok := c.cache.Get(name.String())
		if !ok {
			missing = append(missing, name)
			continue
		}
		found[name] = v.(domain.ChainAccount)
	}

	if len(missing) > 0 {
		fetched, err := c.next.GetAccounts(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, account := range fetched {
			found[account.Name] = account
			c.cache.SetWithTTL(account.Name.String(), account, 1, c.ttl)
		}
		c.cache.Wait()
	}

	out := make([]domain.ChainAccount, 0, len(names))
	for _, name := range names {
		if account, ok := found[name]; ok {
			out = append(out, account)
		}
	}
	return out, nil
}

// SubmitSignedOperations broadcasts through the wrapped client.
func (c *CachedClient) SubmitSignedOperations(
	ctx context.Context,
	ops []domain.Operation,
	key *crypto.PrivateKey,
) (domain.BroadcastResult, error) {
	res, err := c.next.SubmitSignedOperations(ctx, ops, key)
	if err != nil {
		return res, err
	}
	c.cache.Clear()
	return res, nil
}

// Close stops the cache goroutines.
func (c *CachedClient) Close() {
	c.cache.Close()
}

// Compile-time assertion that CachedClient implements domain.ChainClient.
var _ domain.ChainClient = (*CachedClient)(nil)
