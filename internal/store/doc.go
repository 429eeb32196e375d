// Package store provides durable persistence for steemauth's session state.
//
// It contains concrete implementations of domain.Storage, a string-only
// key-value contract:
//   - FileStore keeps every key in one JSON file, written atomically via a
//     temp file and rename; concurrency-safe via internal locking.
//   - BadgerStore keeps keys in a Badger database (or in memory when opened
//     with an empty directory).
//
// Keys namespaces the session pointers under the application prefix and
// AccountStore persists the account registry on top of any Storage.
package store
