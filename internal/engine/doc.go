// Package engine executes process instances on top of the token resolver
//
// Every state change of an instance runs inside one optimistic store
// transaction: the completed flow node is resolved, tokens are forked or
// joined, downstream flow nodes are activated, and gateways are passed
// through automatically. A transaction that loses a race is retried from
// scratch with the configured backoff
package engine
