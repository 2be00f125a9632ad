package tool

// Param declares one typed tool parameter.
type Param struct {
	Name        string
	Type        string // string, number, integer, boolean, array, object
	Description string
	Enum        []string
	Default     any
	Required    bool
}

// Schema builds the JSON object schema for a parameter list.
func Schema(params ...Param) map[string]any {
	props := make(map[string]any, len(params))
	required := make([]string, 0, len(params))

	for _, p := range params {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}

		prop := map[string]any{"type": typ}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if typ == "array" {
			prop["items"] = map[string]any{"type": "string"}
		}

		props[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// applyDefaults fills absent arguments with declared schema defaults.
func applyDefaults(args map[string]any, schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)

	out := make(map[string]any, len(args)+len(props))
	for k, v := range args {
		out[k] = v
	}

	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if def, ok := prop["default"]; ok {
			if _, set := out[name]; !set {
				out[name] = def
			}
		}
	}

	return out
}
