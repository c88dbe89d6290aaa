package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// MaxBodyBytes bounds JSON request bodies. A document update carries the
// raw note and its processed form, each at most 1 MiB.
const MaxBodyBytes = 4 << 20

// ParseJSON decodes JSON from the request body into dest. Unknown fields
// are rejected so that typos in partial updates are not silently ignored.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
