// Package auth holds the active identity and the registry of known accounts.
//
// Service implements domain.AuthSession. It runs the three login paths
// (direct key, Keychain extension, SteemLogin token), persists the session
// pointers through a domain.Storage so a restart can restore them, and
// switches between registered accounts.
//
// Every identity change bumps a generation counter and clears the current
// encryption key, so a send that started under one identity can detect that
// it would otherwise sign with another one.
package auth
