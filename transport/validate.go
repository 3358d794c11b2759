// Validation of inbound client frames via a JSON Schema, generalizing
// the ad-hoc per-type struct decoding in orchestrator/protocol.go with a
// single up-front schema check — the domain stack's wiring home for
// xeipuuv/gojsonschema (no schema-validated inbound boundary exists
// anywhere in the teacher itself).
package transport

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// clientFrameSchema requires only the "type" discriminator every inbound
// frame must carry (spec §6); per-type payload shape is still decoded
// and validated by orchestrator's per-handler struct decode, since the
// payload shape varies by type and a single schema covering all
// variants would just reimplement that switch in JSON Schema form.
const clientFrameSchemaJSON = `{
  "type": "object",
  "properties": {
    "type": {"type": "string", "minLength": 1}
  },
  "required": ["type"]
}`

var clientFrameSchema = gojsonschema.NewStringLoader(clientFrameSchemaJSON)

// ValidationError wraps a schema validation failure. The transport read
// loop treats it as non-fatal: it replies with an error frame and keeps
// the connection open (spec §7: client protocol errors are reported,
// not fatal).
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transport: invalid client frame: %v", e.Reasons)
}

// ValidateClientFrame checks raw against clientFrameSchema.
func ValidateClientFrame(raw []byte) error {
	result, err := gojsonschema.Validate(clientFrameSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationError{Reasons: []string{err.Error()}}
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			reasons = append(reasons, e.String())
		}
		return &ValidationError{Reasons: reasons}
	}
	return nil
}
