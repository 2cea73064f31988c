package api

import "errors"

// Consistency faults. A missing record will not appear by retrying, so
// callers must not treat these as transient
var (
	ErrTokenNotFound      = errors.New("token not found")
	ErrFlowNodeNotFound   = errors.New("flow node instance not found")
	ErrInstanceNotFound   = errors.New("process instance not found")
	ErrDefinitionNotFound = errors.New("process definition not found")
)

// IsConsistencyFault reports whether err stems from missing data rather than
// a transient storage failure
func IsConsistencyFault(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrFlowNodeNotFound) ||
		errors.Is(err, ErrInstanceNotFound) ||
		errors.Is(err, ErrDefinitionNotFound)
}
