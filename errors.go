package kved

import (
	"errors"
	"fmt"
)

// Error kinds from spec.md §7, reified as sentinels so callers can use
// errors.Is instead of matching error strings.
var (
	// ErrNotStarted is returned by any public operation called before a
	// successful Init or Format.
	ErrNotStarted = errors.New("kved: engine not started")

	// ErrInvalidArgument is returned for an empty or too-long key, an
	// unrecognized type, or a type that needs a wider word than the
	// driver provides.
	ErrInvalidArgument = errors.New("kved: invalid key or type")

	// ErrNotFound is returned by Read or Delete for a key with no USED
	// entry in the active sector.
	ErrNotFound = errors.New("kved: key not found")

	// ErrOutOfSpace is returned by Write when every slot is genuinely
	// USED — a sector switch cannot reclaim any more room.
	ErrOutOfSpace = errors.New("kved: sector has no reclaimable space")
)

// flashFault wraps an error returned by the underlying flash.Driver.
// It is not a sentinel: callers inspect the wrapped error via errors.Is
// /errors.As against whatever the driver itself returns. The engine
// never retries a flash fault; per spec.md §7 the next Init is the only
// recovery path.
func flashFault(err error) error {
	return fmt.Errorf("kved: flash fault: %w", err)
}
