package types

import (
	"encoding/json"
	"errors"
	"time"
)

// Account is one locally known identity in the registry.
//
// Exactly one of AccessToken and EncryptedPrivateKey is populated for
// ThirdParty and DirectKey accounts respectively; Extension accounts carry
// neither.
type Account struct {
	Username            Username   `json:"username"`
	AuthMethod          AuthMethod `json:"auth_method"`
	AccessToken         string     `json:"access_token,omitempty"`
	EncryptedPrivateKey string     `json:"encrypted_private_key,omitempty"`
	AddedAt             time.Time  `json:"added_at"`
}

var errAccountSecrets = errors.New("account secrets do not match auth method")

// Validate checks the secret/method invariant.
func (a Account) Validate() error {
	if a.Username == "" {
		return errors.New("account has no username")
	}
	switch a.AuthMethod {
	case AuthDirectKey:
		if a.EncryptedPrivateKey == "" || a.AccessToken != "" {
			return errAccountSecrets
		}
	case AuthThirdParty:
		if a.AccessToken == "" || a.EncryptedPrivateKey != "" {
			return errAccountSecrets
		}
	case AuthExtension:
		if a.AccessToken != "" || a.EncryptedPrivateKey != "" {
			return errAccountSecrets
		}
	default:
		return errors.New("account has no auth method")
	}
	return nil
}

// Registry maps usernames to accounts and keeps insertion order.
// The zero value is ready to use.
type Registry struct {
	order    []Username
	accounts map[Username]Account
}

// Put inserts or replaces the account for its username. Replacing keeps the
// original position.
func (r *Registry) Put(a Account) {
	if r.accounts == nil {
		r.accounts = make(map[Username]Account)
	}
	if _, ok := r.accounts[a.Username]; !ok {
		r.order = append(r.order, a.Username)
	}
	r.accounts[a.Username] = a
}

// Get returns the account for name.
func (r *Registry) Get(name Username) (Account, bool) {
	a, ok := r.accounts[name]
	return a, ok
}

// Remove deletes name and reports whether it was present.
func (r *Registry) Remove(name Username) bool {
	if _, ok := r.accounts[name]; !ok {
		return false
	}
	delete(r.accounts, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of accounts.
func (r *Registry) Len() int { return len(r.order) }

// List returns the accounts in insertion order.
func (r *Registry) List() []Account {
	out := make([]Account, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.accounts[n])
	}
	return out
}

// MarshalJSON encodes the registry as an ordered array.
func (r Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.List())
}

// UnmarshalJSON decodes an ordered array; later duplicates replace earlier ones.
func (r *Registry) UnmarshalJSON(b []byte) error {
	var list []Account
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*r = Registry{}
	for _, a := range list {
		r.Put(a)
	}
	return nil
}

// KeyAuth is a weighted public key inside an authority. On the wire it is the
// chain's ["STM...", weight] pair.
type KeyAuth struct {
	Key    string
	Weight int
}

// AuthorityWeights is a chain authority: threshold plus weighted keys and accounts.
type AuthorityWeights struct {
	WeightThreshold int               `json:"weight_threshold"`
	AccountAuths    []json.RawMessage `json:"account_auths"`
	KeyAuths        []KeyAuth         `json:"key_auths"`
}

// UnmarshalJSON decodes a two-element array.
func (k *KeyAuth) UnmarshalJSON(b []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &k.Key); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &k.Weight)
}

// MarshalJSON encodes the pair as a two-element array.
func (k KeyAuth) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{k.Key, k.Weight})
}

// Keys returns the public keys of the authority.
func (a AuthorityWeights) Keys() []string {
	out := make([]string, 0, len(a.KeyAuths))
	for _, k := range a.KeyAuths {
		out = append(out, k.Key)
	}
	return out
}

// ChainAccount is the chain-side profile of an account. It is a cache, never
// authoritative.
type ChainAccount struct {
	Name          Username         `json:"name"`
	Owner         AuthorityWeights `json:"owner"`
	Active        AuthorityWeights `json:"active"`
	Posting       AuthorityWeights `json:"posting"`
	MemoKey       string           `json:"memo_key"`
	JSONMetadata  string           `json:"json_metadata"`
	Balance       string           `json:"balance"`
	SBDBalance    string           `json:"sbd_balance"`
	VestingShares string           `json:"vesting_shares"`
}

// HasKey reports whether pub is authorized at tier or above. Keys of a higher
// tier also satisfy a lower one.
func (c ChainAccount) HasKey(pub string, tier Authority) bool {
	tiers := []AuthorityWeights{c.Owner}
	if tier <= Active {
		tiers = append(tiers, c.Active)
	}
	if tier == Posting {
		tiers = append(tiers, c.Posting)
	}
	for _, t := range tiers {
		for _, k := range t.KeyAuths {
			if k.Key == pub {
				return true
			}
		}
	}
	return false
}
