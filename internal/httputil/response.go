package httputil

import (
	"encoding/json"
	"maps"
	"net/http"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeProblem = "application/problem+json"
)

// RespondJSON writes data as JSON. The body is marshaled before the header
// goes out, so an encoding failure still produces a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	write(w, status, contentTypeJSON, payload)
}

// ProblemDetail is an RFC 7807 problem body. Extra members are emitted at
// the top level next to the standard ones.
type ProblemDetail struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string
	Extra    map[string]any
}

func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+5)
	maps.Copy(m, p.Extra)
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	return json.Marshal(m)
}

// RespondError writes a problem+json error
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras writes a problem+json error carrying extra members,
// e.g. {"login": "/login"} on a 401 from the session gate.
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]any) {
	payload, err := json.Marshal(ProblemDetail{
		Type:   problemType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extras,
	})
	if err != nil {
		write(w, http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("internal server error"))
		return
	}
	write(w, status, contentTypeProblem, payload)
}

func write(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

const rfc9110 = "https://www.rfc-editor.org/rfc/rfc9110#section-"

var problemTypes = map[int]string{
	http.StatusBadRequest:            rfc9110 + "15.5.1",
	http.StatusUnauthorized:          rfc9110 + "15.5.2",
	http.StatusForbidden:             rfc9110 + "15.5.4",
	http.StatusNotFound:              rfc9110 + "15.5.5",
	http.StatusConflict:              rfc9110 + "15.5.10",
	http.StatusRequestEntityTooLarge: rfc9110 + "15.5.14",
	http.StatusInternalServerError:   rfc9110 + "15.6.1",
	http.StatusServiceUnavailable:    rfc9110 + "15.6.4",
}

func problemType(status int) string {
	if t, ok := problemTypes[status]; ok {
		return t
	}
	return "about:blank"
}
