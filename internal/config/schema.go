package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

var generated struct {
	once sync.Once
	data []byte
	err  error
}

// JSONSchema reflects Config into a JSON Schema for editors, keyed by the
// yaml field names. Unknown keys are disallowed, as they are when loading.
// Printed by `newton config schema`.
func JSONSchema() ([]byte, error) {
	generated.once.Do(func() {
		reflector := &jsonschema.Reflector{
			FieldNameTag:               "yaml",
			DoNotReference:             true,
			AllowAdditionalProperties:  false,
			RequiredFromJSONSchemaTags: true,
		}
		s := reflector.Reflect(&Config{})
		s.Title = "newton client configuration"
		s.Description = fmt.Sprintf("Configuration file version %d. Durations take Go duration strings such as \"30s\" or integer nanoseconds.", CurrentVersion)
		generated.data, generated.err = json.MarshalIndent(s, "", "  ")
	})
	return generated.data, generated.err
}
