package engine

import (
	"errors"
	"fmt"
)

var (
	ErrLocked          = errors.New("layer is locked")
	ErrNoAsset         = errors.New("layer asset not available")
	ErrNoSelection     = errors.New("no layer selected")
	ErrLayerNotFound   = errors.New("layer not found")
	ErrNotBound        = errors.New("layer has no live node")
	ErrHidden          = errors.New("layer is hidden")
	ErrCropNotPending  = errors.New("layer is not being cropped")
	ErrCropInProgress  = errors.New("layer is being cropped")
	ErrNotLoaded       = errors.New("no design is open")
	ErrUnknownAxis     = errors.New("unknown flip axis")
	ErrUnknownMove     = errors.New("unknown move direction")
	ErrNonFinite       = errors.New("value is not a finite number")
	ErrBelowMinimum    = errors.New("rendered size would drop below one pixel")
	ErrNonPositiveSize = errors.New("size must be positive")
)

// ValidationError is a malformed request rejected before any state changed.
type ValidationError struct {
	Op      string
	LayerId string
	Err     error
}

func (e *ValidationError) Error() string {
	return describe("invalid", e.Op, e.LayerId, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BindingError means an image source could not be loaded or decoded. No node
// was inserted.
type BindingError struct {
	Op      string
	LayerId string
	Err     error
}

func (e *BindingError) Error() string {
	return describe("binding failed", e.Op, e.LayerId, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// PersistenceError is a failed create, update or delete. Local state is not
// rolled back.
type PersistenceError struct {
	Op      string
	LayerId string
	Err     error
}

func (e *PersistenceError) Error() string {
	return describe("persistence failed", e.Op, e.LayerId, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PreconditionError is an operation rejected as a no-op, e.g. on a locked layer.
type PreconditionError struct {
	Op      string
	LayerId string
	Err     error
}

func (e *PreconditionError) Error() string {
	return describe("rejected", e.Op, e.LayerId, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func describe(kind, op, layerId string, err error) string {
	if layerId == "" {
		return fmt.Sprintf("%s %s: %v", op, kind, err)
	}
	return fmt.Sprintf("%s %s for layer %s: %v", op, kind, layerId, err)
}
