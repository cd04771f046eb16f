// Package httputil centralizes JSON response writing so every handler returns
// the same envelope shapes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	gwerrors "phi-gateway/pkg/errors"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a gateway error into an HTTP JSON error envelope.
// Internal errors omit the description so backend details never leak to
// clients; everything else includes it.
func WriteError(w http.ResponseWriter, err error) {
	code := gwerrors.CodeInternal
	description := ""

	var gw gwerrors.GatewayError
	if errors.As(err, &gw) {
		code = gw.Code
		description = gw.Description
	}

	body := map[string]string{"error": string(code)}
	if description != "" && code != gwerrors.CodeInternal {
		body["error_description"] = description
	}
	WriteJSON(w, gwerrors.ToHTTPStatus(code), body)
}
