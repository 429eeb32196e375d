// Package dispatch routes a chain operation to the signing path of the active
// account and reports the outcome to the tracker.
//
// Paths are tried in a fixed order:
//  1. an explicit active key passed with the send;
//  2. the Keychain extension, which signs and broadcasts itself;
//  3. the SteemLogin signer, which broadcasts posting operations with the
//     account's token and hands everything else to a signing link;
//  4. the locally stored key, unlocked with the PIN, or a one-off active key
//     for elevated operations.
//
// Successful sends run the registered hooks in their own goroutines. A hook
// never changes the result of the send that triggered it.
package dispatch
