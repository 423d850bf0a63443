// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package ifaceupdate implements the generic add/update/remove protocol
// used to keep one published D-Bus interface on one object in sync with
// that object's state (§4.1).
package ifaceupdate

import (
	"github.com/godbus/dbus/v5"

	"github.com/woodrow-shen/udisks/internal/busexport"
)

// Object is the minimal capability an interface updater needs from the
// object it is updating: a bus path to export under and an object-bus
// server to export through.
type Object interface {
	ObjectPath() dbus.ObjectPath
	Server() busexport.Exporter
}

// Spec is a small record of function values describing one interface's
// lifecycle, the Go rendering of the "trait with three methods" the spec
// suggests (§9 Design Notes): whether the object currently warrants the
// interface, how to wire a freshly constructed skeleton to the object, and
// how to push new state into an already-published skeleton.
type Spec struct {
	// InterfaceName is the D-Bus interface name exported, e.g.
	// "org.freedesktop.UDisks2.Block.Filesystem".
	InterfaceName string

	// Has reports whether obj currently warrants this interface being
	// published at all.
	Has func(obj Object) bool

	// New constructs a fresh skeleton implementation and wires it to obj.
	// Called only when transitioning from "no interface" to "interface
	// present".
	New func(obj Object) interface{}

	// Update pushes the given action's effect into an already-constructed
	// skeleton. It reports whether anything observable changed.
	Update func(obj Object, action string, impl interface{}) (changed bool, err error)
}

// Slot holds the currently-published interface for one (object, Spec)
// pair, plus the live skeleton instance so Update can be called on it
// again.
type Slot struct {
	handle busexport.Handle
	impl   interface{}
}

// Published reports whether the slot currently holds a published
// interface.
func (s *Slot) Published() bool {
	return s.impl != nil
}

// Handle returns the bus handle for the currently published interface, or
// the zero Handle if nothing is published.
func (s *Slot) Handle() busexport.Handle {
	return s.handle
}

// Apply runs one pass of the add/update/remove protocol for obj under
// spec, storing state in slot. It reports whether the interface's
// observable state changed during this call.
func Apply(obj Object, action string, spec Spec, slot *Slot) (changed bool, err error) {
	has := spec.Has(obj)

	add := false
	if !slot.Published() && has {
		slot.impl = spec.New(obj)
		add = true
	} else if slot.Published() && !has {
		if err := obj.Server().Unexport(slot.handle); err != nil {
			return false, err
		}
		*slot = Slot{}
		return false, nil
	}

	if slot.Published() {
		changed, err = spec.Update(obj, action, slot.impl)
		if err != nil {
			return false, err
		}
		if add {
			h, err := obj.Server().Export(obj.ObjectPath(), spec.InterfaceName, slot.impl)
			if err != nil {
				return false, err
			}
			slot.handle = h
			changed = true
		}
	}
	return changed, nil
}
