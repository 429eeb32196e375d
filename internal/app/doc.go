// Package app wires application dependencies for the CLI.
//
// It builds the store, chain client, signers and high-level services from a
// validated Config, exposing them via the Wire struct for commands to use.
// Serve runs the HTTP bridge over the same graph.
package app
