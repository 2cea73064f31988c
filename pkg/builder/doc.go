// Package builder assembles process definitions in code
//
// Builders are immutable: every method returns a modified copy, so a
// partially built process can be shared and extended in several directions
package builder
