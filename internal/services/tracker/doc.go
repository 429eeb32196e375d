// Package tracker records the lifecycle of dispatched transactions.
//
// It keeps three views, all guarded by one mutex:
//   - the "current" state, which follows the most recent Start of any type;
//   - a per-operation-type result cache, shown next to the form that sent it;
//   - an append-only history log, most recent first, trimmed only by Delete.
//
// Every Start returns a Ticket. A ticket finishes exactly once; a ticket that
// was superseded by a newer Start of the same type still lands in history but
// no longer owns the per-type cache.
package tracker
