// Package merge resolves the token bookkeeping for a completed flow node
//
// The Resolver applies the fork/join decision table for parallel, inclusive
// and exclusive gateways and for boundary events, producing a single
// TokenDecision per completion. Evaluate derives the three flags the engine
// queries on every completion directly from the classified inputs. Neither
// holds state or writes anything, so both are safe to call concurrently and
// to re-run when the enclosing transaction is retried
package merge
