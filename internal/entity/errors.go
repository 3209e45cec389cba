package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNoImage         = errors.New("no image loaded")
	ErrSessionNotFound = errors.New("session not found")
	ErrSuperseded      = errors.New("superseded by a newer request")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrNothingToRedo   = errors.New("nothing to redo")
	ErrGatewayDisabled = errors.New("background removal is not configured")
	ErrFileExists      = errors.New("file already exists")
	ErrUploadTooLarge  = errors.New("upload too large")
)

// ValidationError rejects an intent before it becomes part of a sequence.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s edit: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s edit: %s: %s", e.Kind, e.Field, e.Reason)
}

// DecodeError reports image bytes that could not be turned into a raster.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return "decode image: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GatewayError carries the upstream status and body of a failed background
// removal call. Status is 0 when the request never got a response.
type GatewayError struct {
	Status int
	Body   string
	Err    error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("background removal failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("background removal failed: %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("background removal failed: %d %s", e.Status, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// EncodeError reports a failed export serialization.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
