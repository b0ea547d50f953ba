package postgrest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is an error body returned by the REST gateway.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	fmt.Fprintf(&b, " (status %d", e.StatusCode)
	if e.Code != "" {
		b.WriteString(", code ")
		b.WriteString(e.Code)
	}
	b.WriteString(")")
	return b.String()
}

// parseError builds an *APIError from a non-2xx response. Bodies that are not
// the gateway's JSON shape are kept verbatim as the message.
func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("request failed with status %d", status)
		}
	}
	apiErr.StatusCode = status
	return apiErr
}
