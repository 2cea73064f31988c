// Package api defines the core data types shared across the process engine
//
// This package contains process definitions, process and flow node
// instances, tokens, and the token decisions produced when a flow node
// completes
package api
