package interfaces

import (
	"context"

	"steemauth/internal/crypto"
	domaintypes "steemauth/internal/domain/types"
)

// ChainClient is the subset of the chain RPC used by the core.
type ChainClient interface {
	GetAccounts(ctx context.Context, names []domaintypes.Username) ([]domaintypes.ChainAccount, error)
	SubmitSignedOperations(
		ctx context.Context,
		ops []domaintypes.Operation,
		key *crypto.PrivateKey,
	) (domaintypes.BroadcastResult, error)
}
