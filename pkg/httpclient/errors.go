package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// DownstreamError is the normalised form of an upstream error body. Code is
// the machine-readable reason (error code, error_type tag) and Message the
// human-readable text; either may be empty when the body carried neither.
type DownstreamError struct {
	Status  int
	Code    string
	Message string
	Body    string
}

func (e *DownstreamError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("upstream returned %d (%s): %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("upstream returned %d: %s", e.Status, truncate(e.Body, 256))
	}
}

// ParseResponseError reads and closes the body of a non-2xx response and
// returns it as a DownstreamError.
func ParseResponseError(resp *http.Response) *DownstreamError {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &DownstreamError{Status: resp.StatusCode, Message: "failed to read error body: " + err.Error()}
	}
	return ParseErrorBody(resp.StatusCode, body)
}

// ParseErrorBody understands the error body shapes returned by the storefront
// backends:
//
//	{"error":{"code":"OUT_OF_STOCK","message":"..."}}
//	{"error":"authentication_required","message":"..."}
//	{"error_type":"authentication_required","message":"..."}
//	{"code":"...","message":"..."}
//	{"detail":"..."}
//
// Anything else is kept verbatim in Body.
func ParseErrorBody(status int, body []byte) *DownstreamError {
	de := &DownstreamError{Status: status, Body: string(body)}

	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) != nil {
		de.Message = strings.TrimSpace(truncate(string(body), 512))
		return de
	}

	if raw, ok := fields["error"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(raw, &nested) == nil {
			de.Code = firstString(nested, "code", "type", "error_type")
			de.Message = firstString(nested, "message", "detail")
		} else {
			de.Code = scalarString(raw)
		}
	}
	if de.Code == "" {
		de.Code = firstString(fields, "error_type", "code", "reason")
	}
	if de.Message == "" {
		de.Message = firstString(fields, "message", "detail", "msg")
	}
	if de.Message == "" {
		if raw, ok := fields["detail"]; ok {
			de.Message = strings.TrimSpace(string(raw))
		}
	}
	return de
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}

func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			if s := scalarString(raw); s != "" {
				return s
			}
		}
	}
	return ""
}

// scalarString renders a JSON string or number as text; other kinds yield "".
func scalarString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return n.String()
		}
	}
	return ""
}
