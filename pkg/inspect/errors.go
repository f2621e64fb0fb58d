package inspect

import (
	"errors"
	"net/http"

	"go.mau.fi/util/exhttp"

	"github.com/nullcoward/holonic-engine/pkg/holonpath"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	exhttp.WriteJSONResponse(w, status, data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	exhttp.WriteJSONResponse(w, status, map[string]any{"error": msg})
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

// bindingErrorStatus maps a purpose/self/knowledge path-traversal error to
// the HTTP status spec.md §4.12 assigns it: a path that doesn't resolve
// is "not found", anything else is "bad input".
func bindingErrorStatus(err error) int {
	if errors.Is(err, holonpath.ErrPathNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
