package definition

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/kode4food/bpmnflow/pkg/api"
)

var (
	ErrInvalidDocument = errors.New("definition document must be a JSON object")
	ErrNodesRequired   = errors.New("definition document has no nodes array")
)

const gatewaySuffix = "_gateway"

// Load parses and validates a process definition document. Keys may be
// snake_case or camelCase, and the BPMN names flowNodes, sequenceFlows,
// sourceRef, targetRef, attachedToRef and cancelActivity are accepted.
// Node types such as "exclusiveGateway" imply their gateway type
func Load(data []byte) (*api.ProcessDefinition, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidDocument
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrInvalidDocument
	}

	res := &api.ProcessDefinition{
		ID:      api.DefinitionID(str(doc, "id")),
		Name:    str(doc, "name"),
		Version: int(field(doc, "version").Int()),
	}

	nodes := field(doc, "nodes", "flowNodes", "flow_nodes")
	if !nodes.IsArray() {
		return nil, ErrNodesRequired
	}
	for _, n := range nodes.Array() {
		res.Nodes = append(res.Nodes, loadNode(n))
	}

	flows := field(doc, "transitions", "sequenceFlows", "sequence_flows")
	for _, tr := range flows.Array() {
		res.Transitions = append(res.Transitions, loadTransition(tr))
	}

	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// LoadFile reads and parses a process definition document from disk
func LoadFile(path string) (*api.ProcessDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func loadNode(n gjson.Result) *api.FlowNodeDefinition {
	typ, gw := nodeType(str(n, "type"))
	if g := str(n, "gateway_type", "gatewayType"); g != "" {
		gw = api.GatewayType(strings.ToLower(g))
	}

	res := &api.FlowNodeDefinition{
		ID:          api.FlowNodeID(str(n, "id")),
		Name:        str(n, "name"),
		Type:        typ,
		GatewayType: gw,
		TriggeredByEvent: field(n,
			"triggered_by_event", "triggeredByEvent",
		).Bool(),
		AttachedTo: api.FlowNodeID(
			str(n, "attached_to", "attachedTo", "attachedToRef"),
		),
	}

	if v := field(n, "interrupting", "cancelActivity"); v.Exists() {
		res.Interrupting = v.Bool()
	} else {
		res.Interrupting = typ == api.NodeBoundaryEvent ||
			typ == api.NodeStartEvent
	}
	return res
}

func loadTransition(tr gjson.Result) *api.TransitionDefinition {
	return &api.TransitionDefinition{
		ID:     api.TransitionID(str(tr, "id")),
		Source: api.FlowNodeID(str(tr, "source", "sourceRef", "source_ref")),
		Target: api.FlowNodeID(str(tr, "target", "targetRef", "target_ref")),
		Condition: str(tr,
			"condition", "conditionExpression", "condition_expression",
		),
		IsDefault: field(tr, "is_default", "isDefault", "default").Bool(),
	}
}

// nodeType maps a camelCase or snake_case element name to its NodeType.
// Typed gateway names also yield the gateway type
func nodeType(name string) (api.NodeType, api.GatewayType) {
	snake := toSnake(name)
	if g, ok := strings.CutSuffix(snake, gatewaySuffix); ok {
		return api.NodeGateway, api.GatewayType(g)
	}
	return api.NodeType(snake), ""
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func field(res gjson.Result, names ...string) gjson.Result {
	for _, name := range names {
		if v := res.Get(name); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func str(res gjson.Result, names ...string) string {
	return field(res, names...).String()
}
