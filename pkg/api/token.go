package api

import "time"

// Token represents one concurrent thread of execution inside a process
// instance. Tokens form a forest through ParentRefID; an empty parent marks a
// root thread
type Token struct {
	CreatedAt         time.Time         `json:"created_at"`
	ID                TokenID           `json:"id"`
	RefID             TokenRefID        `json:"ref_id"`
	ParentRefID       TokenRefID        `json:"parent_ref_id,omitempty"`
	ProcessInstanceID ProcessInstanceID `json:"process_instance_id"`
}

// IsRoot returns true if the token was not forked from another thread
func (t *Token) IsRoot() bool {
	return t.ParentRefID == ""
}
