package openapi

import "github.com/getkin/kin-openapi/openapi3"

// Small schema builders shared by the generator.

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func formatSchema(typ, format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{typ}, Format: format}}
}

func boolSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}

// anySchema accepts any JSON value, including null.
func anySchema(description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Description: description, Nullable: true}}
}

func objectSchema(required []string, props openapi3.Schemas) *openapi3.Schema {
	return &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Required:   required,
		Properties: props,
	}
}

func arraySchema(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: items}}
}
