// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package objects

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/woodrow-shen/udisks/internal/busexport"
	"github.com/woodrow-shen/udisks/internal/device"
	"github.com/woodrow-shen/udisks/internal/ifaceupdate"
)

// MDRaid represents one software-RAID array (§4.4). Identity derives from
// the array UUID and is immutable after construction.
type MDRaid struct {
	mu      sync.Mutex
	daemon  Daemon
	path    dbus.ObjectPath
	uuid    string
	members MemberSet

	mdraidIface ifaceupdate.Slot

	log *logrus.Entry
}

// NewMDRaid constructs an MD-RAID object for uuid, performs the initial
// coldplug uevent with dev as the first member, and publishes it at the
// sanitized-UUID path (§3, §4.4).
func NewMDRaid(daemon Daemon, uuid string, dev device.Snapshot) *MDRaid {
	m := &MDRaid{
		daemon: daemon,
		uuid:   uuid,
		path:   ObjectPathForMDRaidUUID(uuid),
		log:    logrus.WithField("mdraid_uuid", uuid),
	}
	m.Uevent("add", dev)
	return m
}

// ObjectPathForMDRaidUUID implements the §3 path-derivation rule: trim
// surrounding whitespace from uuid, then replace every space, hyphen, and
// colon with an underscore.
func ObjectPathForMDRaidUUID(uuid string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/freedesktop/UDisks2/mdraid/" + device.SanitizeMDUUID(uuid))
}

// ObjectPath implements ifaceupdate.Object.
func (m *MDRaid) ObjectPath() dbus.ObjectPath { return m.path }

// Server implements ifaceupdate.Object.
func (m *MDRaid) Server() busexport.Exporter { return m.daemon.Server() }

// UUID returns the array UUID this object was constructed with.
func (m *MDRaid) UUID() string { return m.uuid }

// Devices returns the current member-device snapshots.
func (m *MDRaid) Devices() []device.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members.Devices()
}

// HasMember reports whether sysfsPath is currently a member of this array.
func (m *MDRaid) HasMember(sysfsPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.members.Devices() {
		if d.SysfsPath == sysfsPath {
			return true
		}
	}
	return false
}

// Empty reports whether the member list is now empty (G5).
func (m *MDRaid) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members.Empty()
}

// Uevent folds one (action, device) notification into the member set and
// refreshes interfaces. Member-list maintenance mirrors Drive semantics
// (§4.4, SPEC_FULL.md §9).
func (m *MDRaid) Uevent(action string, dev device.Snapshot) {
	m.mu.Lock()
	m.members.Apply(action, dev)
	m.mu.Unlock()

	if _, err := ifaceupdate.Apply(m, action, mdraidSpec, &m.mdraidIface); err != nil {
		m.log.WithError(err).Warn("failed to update MDRaid interface")
	}
}

// Unpublish removes this array's published interface.
func (m *MDRaid) Unpublish() {
	if err := m.daemon.Server().Unexport(m.mdraidIface.Handle()); err != nil {
		m.log.WithError(err).Warn("failed to unexport MDRaid interface")
	}
}

var mdraidSpec = ifaceupdate.Spec{
	InterfaceName: "org.freedesktop.UDisks2.MDRaid",
	Has:           func(ifaceupdate.Object) bool { return true },
	New:           func(obj ifaceupdate.Object) interface{} { return &mdraidInterface{} },
	Update: func(obj ifaceupdate.Object, action string, impl interface{}) (bool, error) {
		m := obj.(*MDRaid)
		iface := impl.(*mdraidInterface)
		count := len(m.Devices())
		changed := iface.NumDevices != count
		iface.UUID = m.uuid
		iface.NumDevices = count
		return changed, nil
	},
}

// mdraidInterface is a minimal skeleton for org.freedesktop.UDisks2.MDRaid;
// the concrete property/method surface is out of scope (§1 Out of scope).
type mdraidInterface struct {
	UUID       string
	NumDevices int
}
