// Package prompt implements the interactive handlers the dispatcher calls
// when it needs something from the user: the PIN of a stored key, a one-off
// active key, or a link to open.
//
// Terminal serves the CLI. Queue serves the HTTP bridge, where a UI lists the
// pending prompts and answers them by id.
package prompt
