// Package metrics exposes Prometheus collectors for logins and transaction
// sends. A Metrics built with a nil registerer records values without
// registering them, which keeps tests free of global state.
package metrics
