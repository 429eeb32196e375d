package api

import (
	"errors"
	"net/http"

	"steemauth/internal/domain"
	"steemauth/internal/keychain"
	"steemauth/internal/prompt"
	"steemauth/internal/services/dispatch"
)

// statuses maps errors to HTTP statuses. The first match wins.
var statuses = []struct {
	err    error
	status int
}{
	{errBadRequest, http.StatusBadRequest},
	{domain.ErrPendingExternalSignature, http.StatusAccepted},
	{domain.ErrNotAuthenticated, http.StatusUnauthorized},
	{domain.ErrInvalidCredential, http.StatusUnauthorized},
	{domain.ErrDecryptionFailed, http.StatusUnauthorized},
	{domain.ErrUserRejected, http.StatusForbidden},
	{domain.ErrExtensionSigningRejected, http.StatusForbidden},
	{domain.ErrInsufficientAuthority, http.StatusForbidden},
	{domain.ErrUnknownAccount, http.StatusNotFound},
	{dispatch.ErrNothingPending, http.StatusNotFound},
	{keychain.ErrUnknownRequest, http.StatusNotFound},
	{prompt.ErrUnknownPrompt, http.StatusNotFound},
	{domain.ErrKeyNotAvailable, http.StatusConflict},
	{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	{domain.ErrHandlerNotConfigured, http.StatusServiceUnavailable},
	{domain.ErrExtensionUnavailable, http.StatusServiceUnavailable},
	{domain.ErrBroadcastFailed, http.StatusBadGateway},
}

func statusOf(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
