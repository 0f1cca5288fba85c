package store

import (
	"context"
	"errors"
	"strings"

	"github.com/yourorg/camera-dashboard/internal/backend"
	"github.com/yourorg/camera-dashboard/internal/camera"
)

var (
	// ErrBusy is returned when another connect/disconnect/delete is already
	// running for the same camera.
	ErrBusy = errors.New("operation already in progress")

	ErrNotFound = camera.ErrNotFound
)

type ErrorKind string

const (
	KindConnection ErrorKind = "connection"
	KindDomain     ErrorKind = "domain"
	KindOperation  ErrorKind = "operation"
	// KindCanceled is the caller abandoning a request. It says nothing about
	// the backend and never raises the banner.
	KindCanceled   ErrorKind = "canceled"
)

// Message signatures of unreachable backends that reach us untyped, e.g.
// errors relayed from a browser client.
var connectionSignatures = []string{
	"Network Error",
	"ERR_CONNECTION_REFUSED",
	"connection refused",
}

func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if backend.IsNetwork(err) {
		return KindConnection
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	if backend.IsDomain(err) {
		return KindDomain
	}

	msg := err.Error()
	for _, sig := range connectionSignatures {
		if strings.Contains(msg, sig) {
			return KindConnection
		}
	}
	return KindOperation
}

// ConnectionError is the persistent banner shown while the camera service is
// unreachable. It replaces the view until cleared by a retry or a good load.
type ConnectionError struct {
	HasError     bool      `json:"has_error"`
	ErrorType    ErrorKind `json:"error_type,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ErrorDetails string    `json:"error_details,omitempty"`
}
