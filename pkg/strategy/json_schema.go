package strategy

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToJSONSchema converts a struct to a JSON schema
func ToJSONSchema[T any](t T) (string, error) {
	return marshalSchema(t, false)
}

// ToJSONSchemaIndent is ToJSONSchema with indented output, for printing.
func ToJSONSchemaIndent[T any](t T) (string, error) {
	return marshalSchema(t, true)
}

func marshalSchema(t any, indent bool) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	var (
		out []byte
		err error
	)

	if indent {
		out, err = json.MarshalIndent(schema, "", "  ")
	} else {
		out, err = json.Marshal(schema)
	}

	if err != nil {
		return "", err
	}

	return string(out), nil
}
