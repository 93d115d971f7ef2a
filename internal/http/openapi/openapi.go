// Package openapi holds the OpenAPI description of the fulfillment API.
package openapi

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var document []byte

// Document returns the embedded YAML document.
func Document() []byte { return document }

// Handler serves the document as application/yaml.
func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(document)
}
