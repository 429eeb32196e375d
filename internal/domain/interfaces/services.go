package interfaces

import (
	"context"

	domaintypes "steemauth/internal/domain/types"
)

// EncryptionService derives the process-wide symmetric key and protects
// private keys at rest.
type EncryptionService interface {
	DeriveKey(
		username domaintypes.Username,
		secret string,
		purpose domaintypes.KeyPurpose,
	) (domaintypes.Key, error)
	Current() (domaintypes.Key, bool)
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	EncryptWith(key domaintypes.Key, plaintext string) (string, error)
	DecryptWith(key domaintypes.Key, ciphertext string) (string, error)
	ClearKey()
}

// AuthSession holds the active identity and the account registry.
type AuthSession interface {
	LoginDirect(ctx context.Context, username domaintypes.Username, wif, pin string) error
	LoginExtension(ctx context.Context, username domaintypes.Username) error
	LoginThirdParty(ctx context.Context, accessToken string) error
	Logout() error
	SwitchAccount(ctx context.Context, username domaintypes.Username) error
	RestoreFromStorage(ctx context.Context) error
	Session() domaintypes.Session
	Account(username domaintypes.Username) (domaintypes.Account, bool)
	Accounts() []domaintypes.Account
	Generation() uint64
}
