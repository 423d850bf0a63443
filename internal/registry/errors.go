// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package registry

import "github.com/pkg/errors"

// Kind classifies a registry-level error for logging purposes (§7).
type Kind string

const (
	// KindTransient is a housekeeping failure on one drive; does not
	// abort the sweep.
	KindTransient Kind = "transient"
	// KindProtocol is an unexpected remove for an unknown sysfs_path.
	KindProtocol Kind = "protocol"
	// KindIdentity is a device lacking identifying descriptors.
	KindIdentity Kind = "identity"
	// KindInternal is a failed invariant at index update.
	KindInternal Kind = "internal"
)

// Error wraps an underlying cause with a Kind, so log sites can report
// "object path, kind, and code" (§7) uniformly.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return string(e.Kind) + ": " + e.Op
	}
	return string(e.Kind) + ": " + e.Op + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// wrapErr builds a Kind-tagged Error, using pkg/errors to capture a stack
// trace the way the teacher's error-wrapping does.
func wrapErr(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.WithStack(err)}
}
