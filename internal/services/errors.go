package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// ErrorDetails is the user-facing breakdown of a wrapped stage error.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Details classifies err by marker and returns its message without the
// marker prefix.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	kind := "transient"
	marker := ErrTransient
	switch {
	case errors.Is(err, ErrValidation):
		kind, marker = "validation", ErrValidation
	case errors.Is(err, ErrConfiguration):
		kind, marker = "configuration", ErrConfiguration
	case errors.Is(err, ErrNotFound):
		kind, marker = "not_found", ErrNotFound
	case errors.Is(err, ErrExternalTool):
		kind, marker = "external_tool", ErrExternalTool
	}
	msg := err.Error()
	msg = strings.TrimPrefix(msg, marker.Error()+": ")
	return ErrorDetails{Kind: kind, Message: strings.TrimSpace(msg)}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
