package api

type (
	// DecisionKind tags the variant of a TokenDecision
	DecisionKind string

	// TokenDecision is the outcome of resolving a flow node completion. It
	// names the thread(s) the node's successors will run on:
	//   - NoToken: nothing downstream, no bookkeeping
	//   - Transmit: successors continue on RefID. ParentRefID is only set
	//     when the lineage was read from the store
	//   - Create: successors run on the freshly forked Created threads, all
	//     children of ParentRefID (empty for an independent root thread)
	//   - Join: concurrent branches collapse into RefID, their common parent
	//
	// Fallback is set when no rule of the decision table matched
	TokenDecision struct {
		Kind        DecisionKind `json:"kind"`
		RefID       TokenRefID   `json:"ref_id,omitempty"`
		ParentRefID TokenRefID   `json:"parent_ref_id,omitempty"`
		Created     []TokenRefID `json:"created,omitempty"`
		Fallback    bool         `json:"fallback,omitempty"`
	}
)

const (
	DecisionNoToken  DecisionKind = "no_token"
	DecisionTransmit DecisionKind = "transmit"
	DecisionCreate   DecisionKind = "create"
	DecisionJoin     DecisionKind = "join"
)

// NoToken returns a decision that carries no thread forward
func NoToken() TokenDecision {
	return TokenDecision{Kind: DecisionNoToken}
}

// Transmit returns a decision that continues the given thread unchanged
func Transmit(ref, parent TokenRefID) TokenDecision {
	return TokenDecision{
		Kind:        DecisionTransmit,
		RefID:       ref,
		ParentRefID: parent,
	}
}

// Create returns a decision that forks the given threads as children of
// parent
func Create(parent TokenRefID, refs ...TokenRefID) TokenDecision {
	return TokenDecision{
		Kind:        DecisionCreate,
		ParentRefID: parent,
		Created:     refs,
	}
}

// Join returns a decision that collapses concurrent branches into parent
func Join(parent TokenRefID) TokenDecision {
	return TokenDecision{
		Kind:  DecisionJoin,
		RefID: parent,
	}
}

// RefFor returns the thread the successor reached through the idx-th taken
// transition runs on. A Create with a single thread shares it across all
// successors
func (d TokenDecision) RefFor(idx int) (TokenRefID, bool) {
	switch d.Kind {
	case DecisionTransmit, DecisionJoin:
		return d.RefID, true
	case DecisionCreate:
		if len(d.Created) == 1 {
			return d.Created[0], true
		}
		if idx >= 0 && idx < len(d.Created) {
			return d.Created[idx], true
		}
		return "", false
	default:
		return "", false
	}
}
