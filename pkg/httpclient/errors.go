package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxErrorBody caps how much of an error body is read and kept.
const maxErrorBody = 64 << 10

// StatusError describes a non-2xx response from a third-party API.
type StatusError struct {
	Service    string
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s returned status %d (%s): %s", e.Service, e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
}

// Temporary reports whether the failure is on the upstream side.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// errorEnvelope covers the `{"error": {...}}` bodies returned by our own
// services, hosted payment processors and Google APIs. Google sends a numeric
// code and a string status, the others a string code.
type errorEnvelope struct {
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Status  string          `json:"status"`
		Message string          `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes resp.Body and returns a *StatusError.
// Call it only for non-2xx responses.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &StatusError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("read body: %v", err),
		}
	}
	return statusErrorFromBody(service, resp.StatusCode, body)
}

func statusErrorFromBody(service string, status int, body []byte) *StatusError {
	se := &StatusError{Service: service, StatusCode: status}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		se.Code = env.Error.Status
		if se.Code == "" {
			se.Code = rawCode(env.Error.Code)
		}
		se.Message = env.Error.Message
		return se
	}

	se.Message = string(bytes.TrimSpace(body))
	return se
}

// rawCode renders a JSON string or number as a plain string.
func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		if _, err := strconv.Atoi(n.String()); err == nil {
			return n.String()
		}
	}
	return ""
}

// IsClientError returns true if status is a 4xx code.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
