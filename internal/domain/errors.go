package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a logged-in session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUnknownAccount is returned for a username missing from the registry.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrInvalidCredential is returned when a key does not match the on-chain authority.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrKeyNotAvailable is returned when no symmetric key is current.
	ErrKeyNotAvailable = errors.New("encryption key not available")
	// ErrDecryptionFailed is returned for malformed ciphertext or a wrong key.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrUserRejected is returned when the user explicitly declined in the extension.
	ErrUserRejected = errors.New("rejected by user")
	// ErrPendingExternalSignature signals an out-of-band signing flow was started.
	// It is not a failure; the result arrives later.
	ErrPendingExternalSignature = errors.New("pending external signature")
	// ErrInsufficientAuthority is returned when the chain reports a missing authority.
	ErrInsufficientAuthority = errors.New("insufficient authority")
	// ErrInsufficientFunds is returned when the chain reports a balance shortfall.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBroadcastFailed is the catch-all chain or network failure.
	ErrBroadcastFailed = errors.New("broadcast failed")
	// ErrHandlerNotConfigured is returned when a PIN or active-key handler is required but missing.
	ErrHandlerNotConfigured = errors.New("handler not configured")
	// ErrExtensionSigningRejected is returned when the extension refused the login challenge.
	ErrExtensionSigningRejected = errors.New("extension signing rejected")
	// ErrExtensionUnavailable is returned when no extension is present.
	ErrExtensionUnavailable = errors.New("extension not available")
	// ErrInvalidScope is returned by the third-party signer when its grant is too narrow.
	ErrInvalidScope = errors.New("invalid scope")
)

// TxError is a classified transaction failure with an actionable message.
// It matches its Kind with errors.Is.
type TxError struct {
	Kind    error
	Message string
	Err     error
}

func (e *TxError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches the classification.
func (e *TxError) Is(target error) bool { return target == e.Kind }

// Unwrap returns the underlying cause.
func (e *TxError) Unwrap() error { return e.Err }

// NewTxError builds a TxError of kind wrapping cause.
func NewTxError(kind error, message string, cause error) *TxError {
	return &TxError{Kind: kind, Message: message, Err: cause}
}

// PendingSignatureError is returned when the operation was handed to the
// third-party signer's redirect flow. URL is where the user completes it.
type PendingSignatureError struct {
	Operation string
	URL       string
}

func (e *PendingSignatureError) Error() string {
	return fmt.Sprintf("%s: %s awaiting signature at %s", ErrPendingExternalSignature, e.Operation, e.URL)
}

// Is matches ErrPendingExternalSignature.
func (e *PendingSignatureError) Is(target error) bool {
	return target == ErrPendingExternalSignature
}

// ExtensionPendingError is returned when the caller stopped waiting for the
// extension. The request stays with the extension and may still be answered.
type ExtensionPendingError struct {
	RequestID string
	Err       error
}

func (e *ExtensionPendingError) Error() string {
	return fmt.Sprintf("%s: extension request %s: %v", ErrPendingExternalSignature, e.RequestID, e.Err)
}

// Is matches ErrPendingExternalSignature.
func (e *ExtensionPendingError) Is(target error) bool {
	return target == ErrPendingExternalSignature
}

// Unwrap returns why the caller stopped waiting.
func (e *ExtensionPendingError) Unwrap() error { return e.Err }

// Message returns the user-facing text of err: the TxError message when
// present, the error string otherwise.
func Message(err error) string {
	var tx *TxError
	if errors.As(err, &tx) && tx.Message != "" {
		return tx.Message
	}
	return err.Error()
}
