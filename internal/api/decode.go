package api

import (
	"encoding/json"
	"net/http"

	"github.com/promptguild/promptguild/internal/model"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.InvalidArgument("body", "invalid JSON")
	}
	return nil
}

// listResponse keeps list payloads as arrays even when empty.
func listResponse[T any](key string, items []T) map[string]interface{} {
	if items == nil {
		items = []T{}
	}
	return map[string]interface{}{key: items, "count": len(items)}
}
