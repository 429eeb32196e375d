package interfaces

import (
	"context"

	domaintypes "steemauth/internal/domain/types"
)

// PINHandler asks the user for the PIN protecting the stored key. It may
// block indefinitely; callers bound it with ctx.
type PINHandler interface {
	RequestPIN(ctx context.Context, username domaintypes.Username) (string, error)
}

// ActiveKeyHandler asks the user for a just-in-time active (or owner) key for
// a single operation.
type ActiveKeyHandler interface {
	RequestActiveKey(
		ctx context.Context,
		username domaintypes.Username,
		operation string,
		payload domaintypes.Payload,
	) (string, error)
}
