package handler

import (
	"net/http"
	"strings"

	"github.com/foliodev/folio/internal/openapi"
)

// OpenAPIHandler serves the API description.
type OpenAPIHandler struct {
	version string
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(version string) *OpenAPIHandler {
	return &OpenAPIHandler{version: version}
}

// ServeSpec returns the OpenAPI document with the server URL derived from
// the request.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openapi.Generate(baseURL(r), h.version))
}

// baseURL reconstructs the externally visible origin of the request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}
