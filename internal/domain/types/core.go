package types

import "strings"

// Username is a chain account name.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Normalize lower-cases and trims the name the way the chain stores it.
func (u Username) Normalize() Username {
	return Username(strings.ToLower(strings.TrimSpace(string(u))))
}

// AuthMethod identifies the signing pathway used by an account.
type AuthMethod int

const (
	// AuthNone is the zero value for a logged-out session.
	AuthNone AuthMethod = iota
	// AuthDirectKey signs locally with a private key kept encrypted at rest.
	AuthDirectKey
	// AuthExtension defers signing to the Keychain browser extension.
	AuthExtension
	// AuthThirdParty defers signing to SteemLogin.
	AuthThirdParty
)

// Persisted labels, compatible with the login_auth values written by the web frontend.
const (
	labelDirectKey  = "steem"
	labelExtension  = "keychain"
	labelThirdParty = "steemlogin"
)

// String returns the persisted label of the method.
func (m AuthMethod) String() string {
	switch m {
	case AuthDirectKey:
		return labelDirectKey
	case AuthExtension:
		return labelExtension
	case AuthThirdParty:
		return labelThirdParty
	default:
		return ""
	}
}

// ParseAuthMethod maps a persisted label back to the method.
func ParseAuthMethod(label string) (AuthMethod, bool) {
	switch label {
	case labelDirectKey:
		return AuthDirectKey, true
	case labelExtension:
		return AuthExtension, true
	case labelThirdParty:
		return AuthThirdParty, true
	default:
		return AuthNone, false
	}
}

// MarshalText encodes the method as its label.
func (m AuthMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText decodes a label; unknown labels decode to AuthNone.
func (m *AuthMethod) UnmarshalText(b []byte) error {
	*m, _ = ParseAuthMethod(string(b))
	return nil
}

// Authority is one of the chain's escalating permission tiers.
type Authority int

const (
	// Posting is the default, low-risk tier.
	Posting Authority = iota
	// Active is required for financial operations.
	Active
	// Owner is required for account recovery.
	Owner
)

// String returns the lower-case tier name.
func (a Authority) String() string {
	switch a {
	case Active:
		return "active"
	case Owner:
		return "owner"
	default:
		return "posting"
	}
}

// Elevated reports whether the tier is above posting.
func (a Authority) Elevated() bool { return a == Active || a == Owner }

// ParseAuthority parses "posting", "active", "owner" (case-insensitive).
// "master" is accepted as an alias for owner.
func ParseAuthority(s string) (Authority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "posting":
		return Posting, true
	case "active":
		return Active, true
	case "owner", "master":
		return Owner, true
	default:
		return Posting, false
	}
}

// ExtensionLabel returns the key type name the Keychain extension expects.
// The extension has no owner-level broadcast, so Owner maps to "Active".
func (a Authority) ExtensionLabel() string {
	if a.Elevated() {
		return "Active"
	}
	return "Posting"
}
