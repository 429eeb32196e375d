package mocks

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	"steemauth/internal/crypto"
	"steemauth/internal/domain"
)

// Generic values that are valid for the types commonly needed by tests.
var (
	NoopLogger = zerolog.New(io.Discard)

	GenericError = errors.New("dummy error")

	GenericUsername = domain.Username("alice")
	GenericOther    = domain.Username("bob")

	// GenericWIF is the posting key of GenericUsername.
	GenericWIF = "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ"
	// GenericOtherWIF is the posting key of GenericOther.
	GenericOtherWIF = "5JoQtsKQuH8hC9MyvfJAqo6qmKLm8ePYNucs7tPu2YxG12trzBt"
	// GenericActiveWIF is authorized at the active tier of GenericUsername.
	GenericActiveWIF = "5JPpmwpYMw1KcLrTVayeQgSLWGpZKBvvpyzgJkeRJBiC6P38PKS"

	GenericPIN   = "1234"
	GenericToken = "access-token"
	GenericTxID  = "3f5c0a1e9d7b2c4f6a8e0d1b3c5f7a9e2d4b6c8a"

	GenericPayload = domain.Payload{"to": "bob", "amount": "1.000 STEEM", "memo": ""}

	GenericBroadcast = domain.BroadcastResult{ID: GenericTxID, BlockNum: 42, TrxNum: 1}
)

// PublicKeyOf returns the STM public key string of wif.
func PublicKeyOf(wif string) string {
	key, err := crypto.ParseWIF(wif)
	if err != nil {
		panic(err)
	}
	return key.PublicKey().String()
}

// GenericChainAccount returns the chain profile of name with the generic keys
// of that user in its posting and active authorities.
func GenericChainAccount(name domain.Username) domain.ChainAccount {
	posting := GenericWIF
	if name == GenericOther {
		posting = GenericOtherWIF
	}
	return domain.ChainAccount{
		Name: name,
		Owner: domain.AuthorityWeights{
			WeightThreshold: 1,
		},
		Active: domain.AuthorityWeights{
			WeightThreshold: 1,
			KeyAuths:        []domain.KeyAuth{{Key: PublicKeyOf(GenericActiveWIF), Weight: 1}},
		},
		Posting: domain.AuthorityWeights{
			WeightThreshold: 1,
			KeyAuths:        []domain.KeyAuth{{Key: PublicKeyOf(posting), Weight: 1}},
		},
		Balance: "10.000 STEEM",
	}
}
