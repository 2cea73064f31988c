package builder

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/kode4food/bpmnflow/pkg/api"
)

// NewInstanceID generates a unique process instance ID with a readable
// prefix taken from the definition ID
func NewInstanceID(def api.DefinitionID) api.ProcessInstanceID {
	prefix := api.SanitizeID(def)
	return api.ProcessInstanceID(string(prefix) + "-" + randomHex(8))
}

func randomHex(length int) string {
	bytes := make([]byte, (length+1)/2)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)[:length]
}
