package store

// Keys names the persisted session pointers under an app-specific prefix,
// matching the keys the web frontend writes to local storage.
type Keys struct {
	Prefix string
}

// LoginAuth holds the persisted auth method label.
func (k Keys) LoginAuth() string { return k.Prefix + "-login_auth" }

// AccessToken holds the third-party access token.
func (k Keys) AccessToken() string { return k.Prefix + "-access_token" }

// AuthName holds the last active username.
func (k Keys) AuthName() string { return k.Prefix + "-auth_name" }

// EncryptedKey holds the active account's encrypted private key.
func (k Keys) EncryptedKey() string { return k.Prefix + "-encryptedpk" }

// Accounts holds the JSON-encoded account registry.
func (k Keys) Accounts() string { return k.Prefix + "-accounts" }

// SessionPointers are the keys cleared on logout. The registry survives.
func (k Keys) SessionPointers() []string {
	return []string{k.LoginAuth(), k.AccessToken(), k.AuthName(), k.EncryptedKey()}
}
