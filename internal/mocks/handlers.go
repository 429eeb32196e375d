package mocks

import (
	"context"
	"testing"

	"steemauth/internal/domain"
)

type PINHandler struct {
	RequestPINFunc func(ctx context.Context, username domain.Username) (string, error)
}

func BaselinePINHandler(t *testing.T) *PINHandler {
	t.Helper()

	h := PINHandler{
		RequestPINFunc: func(context.Context, domain.Username) (string, error) {
			return GenericPIN, nil
		},
	}

	return &h
}

func (h *PINHandler) RequestPIN(ctx context.Context, username domain.Username) (string, error) {
	return h.RequestPINFunc(ctx, username)
}

type ActiveKeyHandler struct {
	RequestActiveKeyFunc func(ctx context.Context, username domain.Username, operation string, payload domain.Payload) (string, error)
}

func BaselineActiveKeyHandler(t *testing.T) *ActiveKeyHandler {
	t.Helper()

	h := ActiveKeyHandler{
		RequestActiveKeyFunc: func(context.Context, domain.Username, string, domain.Payload) (string, error) {
			return GenericActiveWIF, nil
		},
	}

	return &h
}

func (h *ActiveKeyHandler) RequestActiveKey(
	ctx context.Context,
	username domain.Username,
	operation string,
	payload domain.Payload,
) (string, error) {
	return h.RequestActiveKeyFunc(ctx, username, operation, payload)
}
