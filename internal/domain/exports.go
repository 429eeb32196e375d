package domain

import (
	interfaces "steemauth/internal/domain/interfaces"
	types "steemauth/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username          = types.Username
	AuthMethod        = types.AuthMethod
	Authority         = types.Authority
	Account           = types.Account
	Registry          = types.Registry
	KeyAuth           = types.KeyAuth
	AuthorityWeights  = types.AuthorityWeights
	ChainAccount      = types.ChainAccount
	Key               = types.Key
	KeyPurpose        = types.KeyPurpose
	Payload           = types.Payload
	Operation         = types.Operation
	BroadcastResult   = types.BroadcastResult
	Status            = types.Status
	TransactionRecord = types.TransactionRecord
	TransactionState  = types.TransactionState
	OperationResult   = types.OperationResult
	SessionState      = types.SessionState
	Session           = types.Session
	ThirdPartyProfile = types.ThirdPartyProfile
	ExtensionResponse = types.ExtensionResponse
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	ChainClient       = interfaces.ChainClient
	ExtensionSigner   = interfaces.ExtensionSigner
	ThirdPartySigner  = interfaces.ThirdPartySigner
	URLOpener         = interfaces.URLOpener
	Storage           = interfaces.Storage
	PINHandler        = interfaces.PINHandler
	ActiveKeyHandler  = interfaces.ActiveKeyHandler
	EncryptionService = interfaces.EncryptionService
	AuthSession       = interfaces.AuthSession
)

// Re-exported constants.
const (
	AuthNone       = types.AuthNone
	AuthDirectKey  = types.AuthDirectKey
	AuthExtension  = types.AuthExtension
	AuthThirdParty = types.AuthThirdParty

	Posting = types.Posting
	Active  = types.Active
	Owner   = types.Owner

	PurposePassword = types.PurposePassword
	PurposePIN      = types.PurposePIN

	StatusIdle    = types.StatusIdle
	StatusPending = types.StatusPending
	StatusSuccess = types.StatusSuccess
	StatusError   = types.StatusError

	LoggedOut      = types.LoggedOut
	Authenticating = types.Authenticating
	LoggedIn       = types.LoggedIn
)

// ParseAuthMethod maps a persisted label back to the method.
func ParseAuthMethod(label string) (AuthMethod, bool) { return types.ParseAuthMethod(label) }

// ParseAuthority parses an authority tier name.
func ParseAuthority(s string) (Authority, bool) { return types.ParseAuthority(s) }
