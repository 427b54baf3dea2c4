package decision

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[Kind]string{
	KindPlan:       "schemas/plan.json",
	KindToolCall:   "schemas/tool_call.json",
	KindCorrection: "schemas/correction.json",
	KindValidation: "schemas/validation.json",
}

// compileSchemas compiles the embedded schema of every decision kind.
func compileSchemas() (map[Kind]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	for _, file := range schemaFiles {
		f, err := schemaFS.Open(file)
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		if err := c.AddResource(file, doc); err != nil {
			return nil, fmt.Errorf("add %s: %w", file, err)
		}
	}
	out := make(map[Kind]*jsonschema.Schema, len(schemaFiles))
	for kind, file := range schemaFiles {
		s, err := c.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", file, err)
		}
		out[kind] = s
	}
	return out, nil
}

// schemaText returns the raw schema of kind for inclusion in prompts.
func schemaText(kind Kind) string {
	raw, err := schemaFS.ReadFile(schemaFiles[kind])
	if err != nil {
		return ""
	}
	return string(raw)
}

// parse extracts, validates and decodes a decision from raw model text.
func parse[T any](schema *jsonschema.Schema, raw string) (T, error) {
	var out T

	obj, err := extractObject(raw)
	if err != nil {
		return out, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(obj))
	if err != nil {
		return out, fmt.Errorf("malformed JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return out, fmt.Errorf("schema violation: %w", err)
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(obj), &generic); err != nil {
		return out, fmt.Errorf("malformed JSON: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "mapstructure",
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(generic); err != nil {
		return out, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}
