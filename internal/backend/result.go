package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FailureKind separates errors reported by the data service from errors
// reaching it.
type FailureKind int

const (
	// FailureBackend means the service answered without a success marker.
	FailureBackend FailureKind = iota + 1
	// FailureTransport covers dial errors, bad status codes, undecodable
	// bodies and an open circuit breaker.
	FailureTransport
)

func (k FailureKind) String() string {
	switch k {
	case FailureBackend:
		return "backend"
	case FailureTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Failure is the error side of a Result.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Message)
}

// Result is either a payload or a Failure, never both.
type Result[T any] struct {
	Value T
	Err   *Failure
}

// Ok wraps a successful payload.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail builds a failed result.
func Fail[T any](kind FailureKind, msg string) Result[T] {
	return Result[T]{Err: &Failure{Kind: kind, Message: msg}}
}

// OK reports whether the result carries a payload.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// decodeEnvelope applies the service's only error discriminant: a response
// is a success when it has a "success" key that is not false or null.
func decodeEnvelope(body []byte, dst any) *Failure {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return &Failure{Kind: FailureTransport, Message: "invalid JSON response: " + err.Error()}
	}

	if !isSuccess(probe["success"]) {
		msg := "unknown error"
		if raw, ok := probe["error"]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				msg = s
			}
		}
		return &Failure{Kind: FailureBackend, Message: msg}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &Failure{Kind: FailureTransport, Message: "unexpected response shape: " + err.Error()}
	}
	return nil
}

func isSuccess(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	v := bytes.TrimSpace(raw)
	return !bytes.Equal(v, []byte("false")) && !bytes.Equal(v, []byte("null"))
}
