package auth

import "fmt"

// SwitchPolicy decides how SwitchAccount re-establishes a DirectKey or
// Extension account. ThirdParty accounts always re-run the token exchange.
type SwitchPolicy int

const (
	// TrustCached switches using the cached chain profile, without network calls.
	TrustCached SwitchPolicy = iota
	// Revalidate re-fetches the account from the chain and fails the switch
	// when it no longer exists.
	Revalidate
)

// String returns the configuration name of the policy.
func (p SwitchPolicy) String() string {
	if p == Revalidate {
		return "revalidate"
	}
	return "trust-cached"
}

// ParseSwitchPolicy parses "trust-cached" or "revalidate".
func ParseSwitchPolicy(s string) (SwitchPolicy, error) {
	switch s {
	case "", "trust-cached":
		return TrustCached, nil
	case "revalidate":
		return Revalidate, nil
	default:
		return TrustCached, fmt.Errorf("unknown switch policy %q", s)
	}
}
