// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package busexporttest provides an in-memory busexport.Exporter fake for
// use by other packages' tests.
package busexporttest

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/woodrow-shen/udisks/internal/busexport"
)

// Fake is an in-memory busexport.Exporter used by tests across packages
// that would otherwise need a live D-Bus connection. It records every
// currently-exported (path, interface) pair.
type Fake struct {
	mu      sync.Mutex
	seq     int
	exports map[busexport.Handle]interface{}
}

// NewFake constructs an empty Fake exporter.
func NewFake() *Fake {
	return &Fake{exports: make(map[busexport.Handle]interface{})}
}

var _ busexport.Exporter = (*Fake)(nil)

func (f *Fake) Export(path dbus.ObjectPath, iface string, impl interface{}) (busexport.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := busexport.Handle{Path: path, Interface: iface}
	f.exports[h] = impl
	return h, nil
}

func (f *Fake) NewPath(prefix string) dbus.ObjectPath {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return dbus.ObjectPath(prefix + string(rune('a'+f.seq)))
}

func (f *Fake) Unexport(h busexport.Handle) error {
	if h.Path == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.exports, h)
	return nil
}

// Published reports whether (path, iface) is currently exported.
func (f *Fake) Published(path dbus.ObjectPath, iface string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.exports[busexport.Handle{Path: path, Interface: iface}]
	return ok
}

// Count returns the number of currently exported (path, interface) pairs.
func (f *Fake) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.exports)
}
