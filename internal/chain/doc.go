// Package chain is the JSON-RPC client for a Steem-compatible node.
//
// Client implements domain.ChainClient:
//   - GetAccounts reads account profiles with condenser_api.get_accounts.
//   - SubmitSignedOperations builds a transaction on the current head block,
//     has the node serialize it, signs the digest locally and broadcasts it
//     synchronously.
//
// RPCError carries the node's structured error stack, and Classify turns
// broadcast failures into classified domain errors with actionable text.
// CachedClient puts a ristretto cache in front of account lookups.
package chain
