package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response without validation detail.
type HTTPError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// DomainError is a rejected request: validation failure, conflict, or an
// envelope with success=false.
type DomainError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Fields     map[string]string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func IsDomain(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// errorBody covers the FastAPI shapes: {"detail": "msg"},
// {"detail": [{"loc": [...], "msg": "..."}]} and {"message"/"error": "..."}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Code    string          `json:"code"`
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		if callerGaveUp(resp, err) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return &NetworkError{Op: op, Err: err}
	}
	if !resp.IsError() {
		return nil
	}

	msg, code, fields := parseErrorBody(resp.Body())
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}

	switch resp.StatusCode() {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return &DomainError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Code:       code,
			Message:    msg,
			Fields:     fields,
		}
	}

	return &HTTPError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
}

// callerGaveUp reports whether a transport error came from the caller's own
// context rather than from the backend. A client-side timeout is still a
// network failure.
func callerGaveUp(resp *resty.Response, err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return resp != nil && resp.Request != nil && resp.Request.Context().Err() != nil
}

func parseErrorBody(body []byte) (string, string, map[string]string) {
	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		return strings.TrimSpace(string(body)), "", nil
	}

	if len(eb.Detail) > 0 {
		var s string
		if json.Unmarshal(eb.Detail, &s) == nil {
			return s, eb.Code, nil
		}

		var items []validationItem
		if json.Unmarshal(eb.Detail, &items) == nil && len(items) > 0 {
			fields := make(map[string]string, len(items))
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				field := ""
				if n := len(it.Loc); n > 0 {
					field = fmt.Sprint(it.Loc[n-1])
				}
				fields[field] = it.Msg
				msgs = append(msgs, strings.TrimSpace(field+": "+it.Msg))
			}
			return strings.Join(msgs, "; "), "validation_error", fields
		}
	}

	if eb.Message != "" {
		return eb.Message, eb.Code, nil
	}

	if len(eb.Error) > 0 {
		var s string
		if json.Unmarshal(eb.Error, &s) == nil {
			return s, eb.Code, nil
		}
		var ee EnvelopeError
		if json.Unmarshal(eb.Error, &ee) == nil {
			return ee.Message, ee.Code, nil
		}
	}
	return "", eb.Code, nil
}
