package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateOutputSchema checks that schema is a well-formed JSON Schema
// document. Call it once per route at registration time so a malformed
// schema fails the server's startup instead of silently reaching clients
// inside a PaymentRequirements.outputSchema field.
func ValidateOutputSchema(schema map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal output schema: %w", err)
	}
	loader := gojsonschema.NewBytesLoader(raw)
	if _, err := gojsonschema.NewSchema(loader); err != nil {
		return fmt.Errorf("invalid output schema: %w", err)
	}
	return nil
}
