// Package nucleuserr defines the closed set of error kinds Nucleus surfaces
// across its request-handling engine, so that both the IPC server's
// error-chunk conversion and the process's exit-code mapping can inspect a
// single typed error rather than switching over per-package sentinels.
package nucleuserr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a Nucleus error.
type Kind string

const (
	KindConfig             Kind = "config"
	KindIO                 Kind = "io"
	KindSerialization      Kind = "serialization"
	KindProviderInit       Kind = "provider_init"
	KindProviderRuntime    Kind = "provider_runtime"
	KindProviderTimeout    Kind = "provider_timeout"
	KindTokenizer          Kind = "tokenizer"
	KindEmbedding          Kind = "embedding"
	KindVectorStore        Kind = "vector_store"
	KindPluginUnknown      Kind = "plugin_unknown"
	KindPluginInvalidInput Kind = "plugin_invalid_input"
	KindPluginDenied       Kind = "plugin_denied"
	KindPluginExecution    Kind = "plugin_execution"
	KindUnknownRequestType Kind = "unknown_request_type"
)

// Error is a Nucleus error carrying a kind, a message, and an optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, allowing
// callers to write errors.Is(err, nucleuserr.New(KindProviderTimeout, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ExitCode maps an error's Kind to the process exit code convention from
// the external interfaces: 0 clean, 1 configuration error, 2 provider
// initialization error, >2 reserved for future use.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	kind, ok := KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case KindConfig:
		return 1
	case KindProviderInit:
		return 2
	default:
		return 1
	}
}
