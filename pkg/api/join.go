package api

import "time"

type (
	// JoinState records the branches that have reached a parallel or
	// inclusive join gateway on behalf of one parent thread
	JoinState struct {
		Gateway     FlowNodeID    `json:"gateway"`
		ParentRefID TokenRefID    `json:"parent_ref_id"`
		Arrivals    []JoinArrival `json:"arrivals"`
	}

	// JoinArrival is one branch waiting at a join gateway
	JoinArrival struct {
		ArrivedAt  time.Time    `json:"arrived_at"`
		Transition TransitionID `json:"transition"`
		RefID      TokenRefID   `json:"ref_id"`
	}
)

// Arrived reports whether a branch has already come in through transition
func (j *JoinState) Arrived(transition TransitionID) bool {
	for _, a := range j.Arrivals {
		if a.Transition == transition {
			return true
		}
	}
	return false
}

// HasRef reports whether the thread ref is among the waiting branches
func (j *JoinState) HasRef(ref TokenRefID) bool {
	for _, a := range j.Arrivals {
		if a.RefID == ref {
			return true
		}
	}
	return false
}

// Refs returns the threads of all waiting branches in arrival order
func (j *JoinState) Refs() []TokenRefID {
	res := make([]TokenRefID, 0, len(j.Arrivals))
	for _, a := range j.Arrivals {
		res = append(res, a.RefID)
	}
	return res
}
