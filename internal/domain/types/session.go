package types

// SessionState is the authentication state machine.
type SessionState int

const (
	LoggedOut SessionState = iota
	Authenticating
	LoggedIn
)

// String returns a lower-case name of the state.
func (s SessionState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case LoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

// Session is a read-only snapshot of the active identity.
type Session struct {
	State      SessionState  `json:"state"`
	Username   Username      `json:"username,omitempty"`
	AuthMethod AuthMethod    `json:"auth_method"`
	Profile    *ChainAccount `json:"profile,omitempty"`
}

// IsAuthenticated reports whether the session is logged in.
func (s Session) IsAuthenticated() bool { return s.State == LoggedIn }

// ThirdPartyProfile is what the third-party signer returns for a token.
type ThirdPartyProfile struct {
	Name    Username      `json:"name"`
	Account *ChainAccount `json:"account,omitempty"`
	Scope   []string      `json:"scope,omitempty"`
}

// ExtensionResponse is the extension callback payload.
type ExtensionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// MarshalText encodes the state name.
func (s SessionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
