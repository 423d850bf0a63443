// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package busexport wraps godbus/dbus/v5 export/unexport of object
// skeletons, the "object-bus server" the registry and its objects consume
// (§6 of the spec). It is intentionally thin: the concrete interface
// implementations (properties, method handlers) live in the objects that
// call it, not here.
package busexport

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// Handle identifies one exported (path, interface) pair so it can later be
// unexported.
type Handle struct {
	Path      dbus.ObjectPath
	Interface string
}

// Exporter is the capability objects and the Interface Updater need from
// an object-bus server. *Server implements it against a real D-Bus
// connection; tests substitute an in-memory fake so object lifecycle logic
// can be exercised without a running bus.
type Exporter interface {
	Export(path dbus.ObjectPath, iface string, impl interface{}) (Handle, error)
	NewPath(prefix string) dbus.ObjectPath
	Unexport(h Handle) error
}

// Server exports and unexports object skeletons on a D-Bus connection.
type Server struct {
	conn *dbus.Conn
}

var _ Exporter = (*Server)(nil)

// New wraps an already-connected *dbus.Conn. Production callers pass a
// system-bus connection; tests pass a private/peer connection.
func New(conn *dbus.Conn) *Server {
	return &Server{conn: conn}
}

// Export publishes impl as iface at the fixed path. Calling Export again
// for the same (path, iface) replaces the previous implementation. The
// Interface Updater (§4.1) calls it once, when an interface is first
// added.
func (s *Server) Export(path dbus.ObjectPath, iface string, impl interface{}) (Handle, error) {
	if err := s.conn.Export(impl, path, iface); err != nil {
		return Handle{}, fmt.Errorf("export %s on %s: %w", iface, path, err)
	}
	return Handle{Path: path, Interface: iface}, nil
}

// NewPath generates a unique object path under prefix (e.g.
// "/org/freedesktop/UDisks2/drives/"), without exporting anything there
// yet. This is the Go rendering of the bus server's "export uniquely"
// primitive (§6): object paths for Drive and Block objects are not
// otherwise meaningful, so a random suffix is sufficient and avoids any
// need for a name-mangling scheme. Callers then Export each interface
// individually under the returned path as the Interface Updater (§4.1)
// brings interfaces up one at a time.
func (s *Server) NewPath(prefix string) dbus.ObjectPath {
	suffix := uuid.New().String()[:8]
	return dbus.ObjectPath(prefix + suffix)
}

// Unexport removes a previously exported interface. It is a no-op if the
// handle is zero (nothing was ever published), matching the Interface
// Updater's "slot is empty" case.
func (s *Server) Unexport(h Handle) error {
	if h.Path == "" {
		return nil
	}
	if err := s.conn.Export(nil, h.Path, h.Interface); err != nil {
		return fmt.Errorf("unexport %s on %s: %w", h.Interface, h.Path, err)
	}
	return nil
}
