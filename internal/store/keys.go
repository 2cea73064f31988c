package store

import (
	"github.com/kode4food/bpmnflow/pkg/api"
)

type instanceKeys struct {
	version string
	header  string
	tokens  string
	nodes   string
	joins   string
}

const keySeparator = ":"

// Instance keys share a hash tag so a clustered deployment keeps them on
// one slot
func (s *Redis) instanceKeys(id api.ProcessInstanceID) instanceKeys {
	base := s.prefix + keySeparator + "instance" + keySeparator +
		"{" + string(id) + "}" + keySeparator
	return instanceKeys{
		version: base + "version",
		header:  base + "header",
		tokens:  base + "tokens",
		nodes:   base + "nodes",
		joins:   base + "joins",
	}
}

func (k instanceKeys) all() []string {
	return []string{k.version, k.header, k.tokens, k.nodes, k.joins}
}

func (s *Redis) definitionKey(id api.DefinitionID) string {
	return s.prefix + keySeparator + "definition" + keySeparator + string(id)
}

func (s *Redis) finishedKey() string {
	return s.prefix + keySeparator + "finished"
}

func joinField(gateway api.FlowNodeID, parent api.TokenRefID) string {
	return string(gateway) + keySeparator + string(parent)
}
