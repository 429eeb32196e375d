package interfaces

import (
	"context"

	domaintypes "steemauth/internal/domain/types"
)

// ExtensionSigner is the browser extension that holds keys and signs on the
// user's behalf. Requests block until the extension answers or ctx ends; the
// extension itself has no cancellation channel.
type ExtensionSigner interface {
	// Available reports whether an extension is currently present.
	Available() bool
	RequestBroadcast(
		ctx context.Context,
		username domaintypes.Username,
		ops []domaintypes.Operation,
		authority string,
	) (domaintypes.ExtensionResponse, error)
	RequestSignBuffer(
		ctx context.Context,
		username domaintypes.Username,
		message string,
		authority string,
	) (domaintypes.ExtensionResponse, error)
}

// ThirdPartySigner is the OAuth-like remote signer.
type ThirdPartySigner interface {
	Me(ctx context.Context, accessToken string) (domaintypes.ThirdPartyProfile, error)
	Broadcast(
		ctx context.Context,
		accessToken string,
		ops []domaintypes.Operation,
	) (domaintypes.BroadcastResult, error)
	SignURL(operation string, payload domaintypes.Payload) (string, error)
}

// URLOpener hands a URL to the user out-of-band (browser, terminal, UI).
type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}
