// SPDX-License-Identifier: Apache-2.0

package buddy

import "errors"

var (
	// ErrExhausted is returned by Alloc/AllocOrder when no block of the
	// requested order is free and no higher-order block can be split to
	// produce one.
	ErrExhausted = errors.New("buddy: no block available at the requested or any higher order")

	// ErrInvalidFree is returned by Free when the handle does not refer
	// to a block currently marked used — a double free or a handle from a
	// different Arena. The check is made on the handle's slab slot, so a
	// stale handle whose slot has since been given to another block is
	// not detected.
	ErrInvalidFree = errors.New("buddy: handle does not refer to a block currently in use")
)

// ConfigError reports an invalid Config passed to New.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "buddy: invalid configuration: " + e.Reason
}
