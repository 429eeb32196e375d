// Package steemlogin provides an HTTP implementation of the
// domain.ThirdPartySigner interface backed by SteemLogin.
//
// An access token obtained through the OAuth-like authorization flow lets the
// app read the user's profile and broadcast operations within the token's
// scope. Anything outside that scope, including every active-authority
// operation, is signed by the user on a SteemLogin page reached through
// SignURL.
//
// Error bodies are returned as *APIError, which matches
// domain.ErrInvalidScope and domain.ErrInvalidCredential with errors.Is.
package steemlogin
