package mocks

import (
	"context"
	"net/url"
	"testing"

	"steemauth/internal/domain"
)

type ExtensionSigner struct {
	AvailableFunc         func() bool
	RequestBroadcastFunc  func(ctx context.Context, username domain.Username, ops []domain.Operation, authority string) (domain.ExtensionResponse, error)
	RequestSignBufferFunc func(ctx context.Context, username domain.Username, message string, authority string) (domain.ExtensionResponse, error)
}

func BaselineExtensionSigner(t *testing.T) *ExtensionSigner {
	t.Helper()

	e := ExtensionSigner{
		AvailableFunc: func() bool {
			return true
		},
		RequestBroadcastFunc: func(context.Context, domain.Username, []domain.Operation, string) (domain.ExtensionResponse, error) {
			return domain.ExtensionResponse{Success: true, Result: map[string]any{"id": GenericTxID}}, nil
		},
		RequestSignBufferFunc: func(context.Context, domain.Username, string, string) (domain.ExtensionResponse, error) {
			return domain.ExtensionResponse{Success: true, Result: "signature"}, nil
		},
	}

	return &e
}

func (e *ExtensionSigner) Available() bool {
	return e.AvailableFunc()
}

func (e *ExtensionSigner) RequestBroadcast(
	ctx context.Context,
	username domain.Username,
	ops []domain.Operation,
	authority string,
) (domain.ExtensionResponse, error) {
	return e.RequestBroadcastFunc(ctx, username, ops, authority)
}

func (e *ExtensionSigner) RequestSignBuffer(
	ctx context.Context,
	username domain.Username,
	message string,
	authority string,
) (domain.ExtensionResponse, error) {
	return e.RequestSignBufferFunc(ctx, username, message, authority)
}

type ThirdPartySigner struct {
	MeFunc        func(ctx context.Context, accessToken string) (domain.ThirdPartyProfile, error)
	BroadcastFunc func(ctx context.Context, accessToken string, ops []domain.Operation) (domain.BroadcastResult, error)
	SignURLFunc   func(operation string, payload domain.Payload) (string, error)
}

func BaselineThirdPartySigner(t *testing.T) *ThirdPartySigner {
	t.Helper()

	s := ThirdPartySigner{
		MeFunc: func(context.Context, string) (domain.ThirdPartyProfile, error) {
			account := GenericChainAccount(GenericUsername)
			return domain.ThirdPartyProfile{Name: GenericUsername, Account: &account, Scope: []string{"vote", "comment"}}, nil
		},
		BroadcastFunc: func(context.Context, string, []domain.Operation) (domain.BroadcastResult, error) {
			return GenericBroadcast, nil
		},
		SignURLFunc: func(operation string, payload domain.Payload) (string, error) {
			params := url.Values{}
			for k, v := range payload {
				if s, ok := v.(string); ok {
					params.Set(k, s)
				}
			}
			return "https://steemlogin.com/sign/" + operation + "?" + params.Encode(), nil
		},
	}

	return &s
}

func (s *ThirdPartySigner) Me(ctx context.Context, accessToken string) (domain.ThirdPartyProfile, error) {
	return s.MeFunc(ctx, accessToken)
}

func (s *ThirdPartySigner) Broadcast(
	ctx context.Context,
	accessToken string,
	ops []domain.Operation,
) (domain.BroadcastResult, error) {
	return s.BroadcastFunc(ctx, accessToken, ops)
}

func (s *ThirdPartySigner) SignURL(operation string, payload domain.Payload) (string, error) {
	return s.SignURLFunc(operation, payload)
}

type URLOpener struct {
	OpenURLFunc func(ctx context.Context, url string) error
}

func BaselineURLOpener(t *testing.T) *URLOpener {
	t.Helper()

	o := URLOpener{
		OpenURLFunc: func(context.Context, string) error {
			return nil
		},
	}

	return &o
}

func (o *URLOpener) OpenURL(ctx context.Context, url string) error {
	return o.OpenURLFunc(ctx, url)
}
