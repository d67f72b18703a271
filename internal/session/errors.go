package session

import (
	"errors"
	"fmt"
)

// ErrNoRenderer is returned by render and image export calls on a manager
// built without a renderer.
var ErrNoRenderer = errors.New("no renderer configured")

// FetchError reports a failed load or expansion. Local state is unchanged
// when it is returned.
type FetchError struct {
	Op     string // "load" or "expand"
	NodeID string // set for expansions
	Err    error
}

func (e *FetchError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.NodeID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RenderError reports a renderer failure, including a recovered panic.
type RenderError struct {
	Op  string // "render" or "export image"
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// IsFetchFailure returns true if err is or wraps a *FetchError.
func IsFetchFailure(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsRenderFailure returns true if err is or wraps a *RenderError.
func IsRenderFailure(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}
