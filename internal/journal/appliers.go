package journal

import (
	"maps"
	"slices"

	"github.com/kode4food/timebox"

	"github.com/kode4food/bpmnflow/pkg/api"
)

// Appliers projects journaled engine events into an InstanceHistory. Each
// applier returns a fresh value, leaving the previous projection intact
var Appliers = makeAppliers()

// NewHistory creates an empty history
func NewHistory() *api.InstanceHistory {
	return &api.InstanceHistory{
		Decisions: map[api.DecisionKind]int{},
	}
}

func makeAppliers() timebox.Appliers[*api.InstanceHistory] {
	return timebox.Appliers[*api.InstanceHistory]{
		timebox.EventType(api.EventTypeInstanceStarted): timebox.MakeApplier(
			instanceStarted,
		),
		timebox.EventType(api.EventTypeInstanceCompleted): timebox.MakeApplier(
			instanceFinished,
		),
		timebox.EventType(api.EventTypeInstanceAborted): timebox.MakeApplier(
			instanceFinished,
		),
		timebox.EventType(api.EventTypeInstanceDeleted): timebox.MakeApplier(
			instanceDeleted,
		),
		timebox.EventType(api.EventTypeFlowNodeActivated): timebox.MakeApplier(
			flowNodeActivated,
		),
		timebox.EventType(api.EventTypeFlowNodeCompleted): timebox.MakeApplier(
			flowNodeCompleted,
		),
		timebox.EventType(api.EventTypeFlowNodeAborted): timebox.MakeApplier(
			flowNodeAborted,
		),
		timebox.EventType(api.EventTypeJoinWaiting): timebox.MakeApplier(
			joinWaiting,
		),
		timebox.EventType(api.EventTypeJoinFired): timebox.MakeApplier(
			joinFired,
		),
	}
}

func instanceStarted(
	st *api.InstanceHistory, ev *timebox.Event, data api.InstanceStartedEvent,
) *api.InstanceHistory {
	if st.Deleted {
		st = NewHistory()
	}
	res := withStep(st, ev, &api.HistoryStep{TokenRefID: data.RootRefID})
	res.InstanceID = data.InstanceID
	res.DefinitionID = data.DefinitionID
	res.Status = api.InstanceActive
	res.StartedAt = ev.Timestamp
	return res
}

func instanceFinished(
	st *api.InstanceHistory, ev *timebox.Event, data api.InstanceFinishedEvent,
) *api.InstanceHistory {
	res := withStep(st, ev, &api.HistoryStep{})
	res.Status = data.Status
	res.FinishedAt = ev.Timestamp
	return res
}

func instanceDeleted(
	st *api.InstanceHistory, ev *timebox.Event, _ api.InstanceDeletedEvent,
) *api.InstanceHistory {
	res := withStep(st, ev, &api.HistoryStep{})
	res.Deleted = true
	return res
}

func flowNodeActivated(
	st *api.InstanceHistory, ev *timebox.Event, data api.FlowNodeActivatedEvent,
) *api.InstanceHistory {
	return withStep(st, ev, flowNodeStep(data.FlowNode))
}

func flowNodeCompleted(
	st *api.InstanceHistory, ev *timebox.Event, data api.FlowNodeCompletedEvent,
) *api.InstanceHistory {
	step := flowNodeStep(data.FlowNode)
	step.Decision = data.Decision.Kind
	res := withStep(st, ev, step)
	res.Decisions[data.Decision.Kind]++
	return res
}

func flowNodeAborted(
	st *api.InstanceHistory, ev *timebox.Event, data api.FlowNodeAbortedEvent,
) *api.InstanceHistory {
	return withStep(st, ev, flowNodeStep(data.FlowNode))
}

func joinWaiting(
	st *api.InstanceHistory, ev *timebox.Event, data api.JoinEvent,
) *api.InstanceHistory {
	return withStep(st, ev, joinStep(data.Join))
}

func joinFired(
	st *api.InstanceHistory, ev *timebox.Event, data api.JoinEvent,
) *api.InstanceHistory {
	res := withStep(st, ev, joinStep(data.Join))
	res.JoinsFired++
	return res
}

func flowNodeStep(fn *api.FlowNodeInstance) *api.HistoryStep {
	if fn == nil {
		return &api.HistoryStep{}
	}
	return &api.HistoryStep{
		FlowNode:           fn.DefinitionID,
		FlowNodeInstanceID: fn.ID,
		TokenRefID:         fn.TokenRefID,
	}
}

func joinStep(js *api.JoinState) *api.HistoryStep {
	if js == nil {
		return &api.HistoryStep{}
	}
	return &api.HistoryStep{
		FlowNode:   js.Gateway,
		TokenRefID: js.ParentRefID,
	}
}

// withStep copies the history and appends the step stamped with the
// event's time and type
func withStep(
	st *api.InstanceHistory, ev *timebox.Event, step *api.HistoryStep,
) *api.InstanceHistory {
	res := *st
	res.Decisions = maps.Clone(st.Decisions)
	if res.Decisions == nil {
		res.Decisions = map[api.DecisionKind]int{}
	}
	step.At = ev.Timestamp
	step.Type = api.EventType(ev.Type)
	res.Steps = append(slices.Clone(st.Steps), step)
	return &res
}
