// Package api exposes the services over HTTP for a browser UI.
//
// Besides session and transaction endpoints it carries the two channels that
// need a browser: the Keychain shim polls /keychain/requests and answers
// extension calls, and the UI polls /prompts to collect PINs and active keys
// the dispatcher asks for. Errors are JSON bodies of the form
// {"error": "..."} with a status derived from the domain error.
package api
