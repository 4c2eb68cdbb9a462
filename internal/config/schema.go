package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ScenarioSchema returns the JSON schema for scenario files, indented.
func ScenarioSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(&Scenario{})
	if schema == nil {
		return nil, fmt.Errorf("reflect scenario schema")
	}
	schema.Title = "NPC scenario"
	schema.Description = "Arena, labelled points and agent roster for one simulation session."

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scenario schema: %w", err)
	}
	return append(data, '\n'), nil
}
