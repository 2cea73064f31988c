// Package store persists process instances, their tokens, flow node
// instances, and join bookkeeping. All reads and writes of one process
// instance happen inside an optimistic transaction obtained from
// Store.Atomic
package store
