// Package keychain connects the Steem Keychain browser extension to the
// service.
//
// The extension lives in the user's browser, so Bridge cannot call it
// directly. A small page shim polls Pending, forwards each request to the
// extension and posts the answer back through Respond. The bridge counts as
// available while the shim keeps polling.
package keychain
