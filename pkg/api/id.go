package api

import (
	"regexp"
	"strings"
)

type (
	// DefinitionID identifies a deployed process definition
	DefinitionID string

	// ProcessInstanceID identifies a running process instance
	ProcessInstanceID string

	// FlowNodeID identifies a flow node within a process definition
	FlowNodeID string

	// FlowNodeInstanceID identifies one activation of a flow node
	FlowNodeInstanceID string

	// TransitionID identifies a transition within a process definition
	TransitionID string

	// TokenID is the storage identity of a token record
	TokenID string

	// TokenRefID is the logical execution thread a token stands for. It is
	// stable for the life of the thread and is what flow node instances carry
	TokenRefID string
)

// InvalidIDChars matches characters not permitted in definition and node
// IDs. Valid characters are: letters, digits, underscore, dot, hyphen, plus,
// space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// SanitizeID lowercases an ID, removes invalid characters, replaces spaces
// with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}

// IsValidID reports whether id is non-empty and free of invalid characters
func IsValidID[T ~string](id T) bool {
	return id != "" && !InvalidIDChars.MatchString(string(id))
}
