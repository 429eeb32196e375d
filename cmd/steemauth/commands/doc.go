// Package commands defines the steemauth CLI and wires dependencies for subcommands.
//
// Commands
//
//   - login key        Log in with a private key kept encrypted under a PIN
//   - login steemlogin Log in with a SteemLogin access token
//   - login keychain   Log in through the Keychain shim of a running bridge
//   - logout           End the session, or forget every account with --all
//   - accounts         List the accounts logged in on this device
//   - switch           Make another stored account active
//   - whoami           Print the active session
//   - send             Sign and broadcast one operation
//   - serve            Run the HTTP bridge for a browser UI
//
// # Configuration
//
// Every persistent flag can also be set through the environment with the
// STEEMAUTH_ prefix, e.g. STEEMAUTH_RPC or STEEMAUTH_LOG_LEVEL, or through a
// config file given with --config.
//
// # Implementation
//
// The root command builds the dependency graph (store, chain client, signers,
// services) before any subcommand runs and restores the persisted session, so
// handlers act on the same state a previous invocation left behind.
package commands
