package hr

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of the persisted document.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&Data{})
	s.Title = "hrdesk document"
	s.Description = "Value stored under the " + DefaultKey + " key"
	return s
}

// SchemaJSON returns Schema indented as JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
