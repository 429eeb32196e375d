package mocks

import (
	"context"
	"testing"

	"steemauth/internal/crypto"
	"steemauth/internal/domain"
)

type ChainClient struct {
	GetAccountsFunc            func(ctx context.Context, names []domain.Username) ([]domain.ChainAccount, error)
	SubmitSignedOperationsFunc func(ctx context.Context, ops []domain.Operation, key *crypto.PrivateKey) (domain.BroadcastResult, error)
}

func BaselineChainClient(t *testing.T) *ChainClient {
	t.Helper()

	c := ChainClient{
		GetAccountsFunc: func(_ context.Context, names []domain.Username) ([]domain.ChainAccount, error) {
			out := make([]domain.ChainAccount, 0, len(names))
			for _, name := range names {
				out = append(out, GenericChainAccount(name))
			}
			return out, nil
		},
		SubmitSignedOperationsFunc: func(context.Context, []domain.Operation, *crypto.PrivateKey) (domain.BroadcastResult, error) {
			return GenericBroadcast, nil
		},
	}

	return &c
}

func (c *ChainClient) GetAccounts(ctx context.Context, names []domain.Username) ([]domain.ChainAccount, error) {
	return c.GetAccountsFunc(ctx, names)
}

func (c *ChainClient) SubmitSignedOperations(
	ctx context.Context,
	ops []domain.Operation,
	key *crypto.PrivateKey,
) (domain.BroadcastResult, error) {
	return c.SubmitSignedOperationsFunc(ctx, ops, key)
}
