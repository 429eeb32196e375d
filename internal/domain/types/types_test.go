package types_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steemauth/internal/domain/types"
)

func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		account types.Account
		wantErr bool
	}{
		{"direct key", types.Account{Username: "a", AuthMethod: types.AuthDirectKey, EncryptedPrivateKey: "ct"}, false},
		{"direct key without secret", types.Account{Username: "a", AuthMethod: types.AuthDirectKey}, true},
		{"direct key with token", types.Account{Username: "a", AuthMethod: types.AuthDirectKey, EncryptedPrivateKey: "ct", AccessToken: "t"}, true},
		{"third party", types.Account{Username: "a", AuthMethod: types.AuthThirdParty, AccessToken: "t"}, false},
		{"third party with key", types.Account{Username: "a", AuthMethod: types.AuthThirdParty, AccessToken: "t", EncryptedPrivateKey: "ct"}, true},
		{"extension", types.Account{Username: "a", AuthMethod: types.AuthExtension}, false},
		{"extension with token", types.Account{Username: "a", AuthMethod: types.AuthExtension, AccessToken: "t"}, true},
		{"no method", types.Account{Username: "a"}, true},
		{"no username", types.Account{AuthMethod: types.AuthExtension}, true},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			err := test.account.Validate()
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	var reg types.Registry
	reg.Put(types.Account{Username: "b", AuthMethod: types.AuthExtension})
	reg.Put(types.Account{Username: "a", AuthMethod: types.AuthExtension})
	reg.Put(types.Account{Username: "b", AuthMethod: types.AuthThirdParty, AccessToken: "t"})

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, types.Username("b"), list[0].Username)
	assert.Equal(t, types.AuthThirdParty, list[0].AuthMethod)

	assert.True(t, reg.Remove("b"))
	assert.False(t, reg.Remove("b"))
	_, ok := reg.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestAuthMethod_Labels(t *testing.T) {
	for _, m := range []types.AuthMethod{types.AuthDirectKey, types.AuthExtension, types.AuthThirdParty} {
		got, ok := types.ParseAuthMethod(m.String())
		require.True(t, ok)
		assert.Equal(t, m, got)
	}
	assert.Equal(t, "steem", types.AuthDirectKey.String())
	assert.Equal(t, "keychain", types.AuthExtension.String())
	assert.Equal(t, "steemlogin", types.AuthThirdParty.String())

	_, ok := types.ParseAuthMethod("bogus")
	assert.False(t, ok)
}

func TestParseAuthority(t *testing.T) {
	tests := map[string]types.Authority{
		"":        types.Posting,
		"posting": types.Posting,
		"Active":  types.Active,
		"owner":   types.Owner,
		"master":  types.Owner,
	}
	for in, want := range tests {
		got, ok := types.ParseAuthority(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := types.ParseAuthority("memo")
	assert.False(t, ok)

	assert.False(t, types.Posting.Elevated())
	assert.True(t, types.Active.Elevated())
	assert.True(t, types.Owner.Elevated())
}

func TestChainAccount_HasKey(t *testing.T) {
	raw := `{
		"name": "alice",
		"owner":   {"weight_threshold": 1, "account_auths": [], "key_auths": [["STMowner", 1]]},
		"active":  {"weight_threshold": 1, "account_auths": [], "key_auths": [["STMactive", 1]]},
		"posting": {"weight_threshold": 1, "account_auths": [["app", 1]], "key_auths": [["STMposting", 1]]},
		"memo_key": "STMmemo"
	}`
	var acc types.ChainAccount
	require.NoError(t, json.Unmarshal([]byte(raw), &acc))

	assert.Equal(t, []string{"STMposting"}, acc.Posting.Keys())
	assert.True(t, acc.HasKey("STMposting", types.Posting))
	assert.True(t, acc.HasKey("STMactive", types.Posting))
	assert.True(t, acc.HasKey("STMowner", types.Posting))
	assert.False(t, acc.HasKey("STMposting", types.Active))
	assert.True(t, acc.HasKey("STMactive", types.Active))
	assert.False(t, acc.HasKey("STMactive", types.Owner))
	assert.False(t, acc.HasKey("STMmemo", types.Posting))
}

func TestOperation_JSON(t *testing.T) {
	op := types.Operation{Name: "transfer", Payload: types.Payload{"to": "bob", "amount": "1.000 STEEM"}}
	b, err := json.Marshal(op)
	require.NoError(t, err)
	assert.JSONEq(t, `["transfer", {"to": "bob", "amount": "1.000 STEEM"}]`, string(b))

	var back types.Operation
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, op, back)

	empty, err := json.Marshal(types.Operation{Name: "claim_account"})
	require.NoError(t, err)
	assert.JSONEq(t, `["claim_account", {}]`, string(empty))

	assert.Error(t, json.Unmarshal([]byte(`{"name":"x"}`), &back))
}

func TestKey_NeverSerialized(t *testing.T) {
	key := types.Key{Username: "alice"}
	key.Bytes[0] = 0xAB

	_, err := json.Marshal(key)
	assert.Error(t, err)
	_, err = json.Marshal(struct{ K types.Key }{key})
	assert.Error(t, err)

	assert.NotContains(t, fmt.Sprintf("%v %+v %#v %s", key, key, key, key), "171")
	assert.NotContains(t, fmt.Sprintf("%x", key), "ab")
}
