// Package util provides common utility functions and data structures
//
// This package includes the generic set used for node, transition, and
// token bookkeeping throughout the engine
package util
