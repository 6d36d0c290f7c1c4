// Package openapi builds the OpenAPI description of the folio HTTP API.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

const componentPrefix = "#/components/schemas/"

// Generate returns the OpenAPI document for the HTTP surface served by
// internal/server. baseURL may be empty.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Folio API",
			Description: "Admin sign-in and portfolio content buckets.",
			Version:     version,
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	addSchemas(doc)
	doc.Paths = openapi3.NewPaths()
	addAuthPaths(doc)
	addContentPaths(doc)
	addHealthPaths(doc)
	return doc
}

// addSchemas registers every request and response body as a component.
func addSchemas(doc *openapi3.T) {
	s := doc.Components.Schemas

	s["ErrorResponse"] = &openapi3.SchemaRef{Value: objectSchema([]string{"error"}, openapi3.Schemas{
		"error": {Value: objectSchema([]string{"code", "message"}, openapi3.Schemas{
			"code":    formatSchema("integer", "int32"),
			"message": stringSchema(),
		})},
	})}
	s["EmailRequest"] = &openapi3.SchemaRef{Value: objectSchema([]string{"email"}, openapi3.Schemas{
		"email": formatSchema("string", "email"),
	})}
	s["LoginRequest"] = &openapi3.SchemaRef{Value: objectSchema([]string{"email", "password"}, openapi3.Schemas{
		"email":    formatSchema("string", "email"),
		"password": formatSchema("string", "password"),
	})}
	register := objectSchema([]string{"email", "password"}, openapi3.Schemas{
		"email":    formatSchema("string", "email"),
		"password": formatSchema("string", "password"),
		"mobile":   stringSchema(),
	})
	register.Properties["password"].Value.MinLength = 6
	s["RegisterRequest"] = &openapi3.SchemaRef{Value: register}
	s["VerifyOTPRequest"] = &openapi3.SchemaRef{Value: objectSchema([]string{"email", "otp"}, openapi3.Schemas{
		"email": formatSchema("string", "email"),
		"otp":   {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Pattern: "^[0-9]{6}$"}},
	})}
	s["IdentityStatus"] = &openapi3.SchemaRef{Value: objectSchema(nil, openapi3.Schemas{
		"authorized":  boolSchema(),
		"hasPassword": boolSchema(),
		"hasMobile":   boolSchema(),
		"email":       stringSchema(),
	})}
	user := objectSchema(nil, openapi3.Schemas{
		"id":    formatSchema("integer", "int64"),
		"email": stringSchema(),
	})
	s["User"] = &openapi3.SchemaRef{Value: user}
	s["SessionResponse"] = &openapi3.SchemaRef{Value: objectSchema(nil, openapi3.Schemas{
		"success": boolSchema(),
		"token":   stringSchema(),
		"user":    ref("User", user),
	})}
	s["SessionInfo"] = &openapi3.SchemaRef{Value: objectSchema(nil, openapi3.Schemas{
		"authenticated": boolSchema(),
		"user":          ref("User", user),
		"expiresAt":     formatSchema("string", "date-time"),
	})}
	s["SuccessResponse"] = &openapi3.SchemaRef{Value: objectSchema(nil, openapi3.Schemas{
		"success": boolSchema(),
		"message": stringSchema(),
	})}
	s["BucketResponse"] = &openapi3.SchemaRef{Value: objectSchema(nil, openapi3.Schemas{
		"data":      anySchema("The stored document, or the bucket default."),
		"isDefault": boolSchema(),
	})}
	s["BucketWrite"] = &openapi3.SchemaRef{Value: objectSchema([]string{"data"}, openapi3.Schemas{
		"data": anySchema("Replaces the whole document. null is accepted."),
	})}
	summary := objectSchema(nil, openapi3.Schemas{
		"key":       stringSchema(),
		"isDefault": boolSchema(),
		"updatedAt": formatSchema("string", "date-time"),
	})
	s["BucketSummary"] = &openapi3.SchemaRef{Value: summary}
	s["BucketList"] = &openapi3.SchemaRef{Value: objectSchema(nil, openapi3.Schemas{
		"resource": arraySchema(ref("BucketSummary", summary)),
		"count":    formatSchema("integer", "int32"),
	})}
}

func addAuthPaths(doc *openapi3.T) {
	post := func(id, summary, reqSchema, respSchema string, errs ...string) *openapi3.PathItem {
		return &openapi3.PathItem{Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     summary,
			OperationID: id,
			RequestBody: jsonBody(doc, reqSchema),
			Responses:   newResponses(doc, "200", summary, respSchema, errs...),
		}}
	}

	doc.Paths.Set("/api/auth/check-email", post("checkEmail",
		"Check whether an email is whitelisted", "EmailRequest", "IdentityStatus", "400", "403"))
	doc.Paths.Set("/api/auth/login", post("login",
		"Sign in with email and password", "LoginRequest", "SessionResponse", "400", "401", "403"))
	doc.Paths.Set("/api/auth/register", post("register",
		"Set the first password on a whitelisted email", "RegisterRequest", "SessionResponse", "400", "403"))
	doc.Paths.Set("/api/auth/send-otp", post("sendOTP",
		"Email a one-time code", "EmailRequest", "SuccessResponse", "400", "403", "500"))
	doc.Paths.Set("/api/auth/verify-otp", post("verifyOTP",
		"Exchange a one-time code for a session", "VerifyOTPRequest", "SessionResponse", "400", "401", "403"))

	bearer := openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate("bearerAuth"))
	doc.Paths.Set("/api/auth/session", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Describe the presented bearer token",
			OperationID: "getSession",
			Security:    bearer,
			Responses:   newResponses(doc, "200", "Session details", "SessionInfo", "401"),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Acknowledge sign-out; tokens are stateless",
			OperationID: "logout",
			Responses:   newResponses(doc, "200", "Signed out", "SuccessResponse"),
		},
	})
}

func addContentPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/content", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"content"},
			Summary:     "List content buckets",
			OperationID: "listContent",
			Responses:   newResponses(doc, "200", "Bucket index", "BucketList", "500"),
		},
	})

	typeParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("type").
		WithDescription("Bucket key: profile, projects, achievements, notes, opensource, settings, or any [a-z0-9_-]{1,64}.").
		WithSchema(&openapi3.Schema{Type: &openapi3.Types{"string"}, Pattern: "^[a-z0-9_-]{1,64}$"})}

	bearer := openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate("bearerAuth"))
	write := func(id string) *openapi3.Operation {
		return &openapi3.Operation{
			Tags:        []string{"content"},
			Summary:     "Replace a bucket's whole document",
			OperationID: id,
			Security:    bearer,
			RequestBody: jsonBody(doc, "BucketWrite"),
			Responses:   newResponses(doc, "200", "Stored", "SuccessResponse", "400", "401", "500"),
		}
	}

	doc.Paths.Set("/api/content/{type}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{typeParam},
		Get: &openapi3.Operation{
			Tags:        []string{"content"},
			Summary:     "Read a bucket, falling back to its default",
			OperationID: "getContent",
			Responses:   newResponses(doc, "200", "Bucket document", "BucketResponse", "400", "500"),
		},
		Put:  write("putContent"),
		Post: write("postContent"),
	})
}

func addHealthPaths(doc *openapi3.T) {
	status := &openapi3.SchemaRef{Value: objectSchema(nil, openapi3.Schemas{"status": stringSchema()})}
	for path, id := range map[string]string{"/healthz": "healthz", "/readyz": "readyz"} {
		desc := "Service status"
		responses := openapi3.NewResponses()
		responses.Set("200", &openapi3.ResponseRef{Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(status),
		}})
		doc.Paths.Set(path, &openapi3.PathItem{Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Health probe",
			OperationID: id,
			Responses:   responses,
		}})
	}
}

// ref points at a registered component while keeping the resolved value, so
// the document validates without a loader pass.
func ref(name string, value *openapi3.Schema) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(componentPrefix+name, value)
}

func componentRef(doc *openapi3.T, name string) *openapi3.SchemaRef {
	return ref(name, doc.Components.Schemas[name].Value)
}

func jsonBody(doc *openapi3.T, schema string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Required: true,
		Content:  openapi3.NewContentWithJSONSchemaRef(componentRef(doc, schema)),
	}}
}

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"403": "Access denied",
	"500": "Internal server error",
}

func newResponses(doc *openapi3.T, statusCode, description, schema string, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(componentRef(doc, schema)),
		},
	})

	errorRef := componentRef(doc, "ErrorResponse")
	for _, code := range errorCodes {
		desc := errorDescriptions[code]
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}
