package models

import "fmt"

// AuthError reports a failed bearer token exchange.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %v", e.Err)
	}
	return fmt.Sprintf("authentication failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// GenerationError reports a failed call to the text generation endpoint.
// StatusCode is zero when no response was received.
type GenerationError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Err != nil && e.StatusCode == 0 {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// EmptyDocumentWarning is returned with a successfully loaded document
// whose text produced no chunks. The session stays usable.
type EmptyDocumentWarning struct {
	Name   string
	Chunks int
}

func (w *EmptyDocumentWarning) Error() string {
	return fmt.Sprintf("document %q has no extractable text (%d chunks)", w.Name, w.Chunks)
}
