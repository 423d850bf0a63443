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

// Daemon is the subset of daemon-wide services an object needs: the
// object-bus server and the cleanup subsystem used to decide whether a
// block device is presently mounted.
type Daemon interface {
	Server() busexport.Exporter
	IsMounted(sysfsPath string) bool
}

// Block represents one live kernel block device (§4.2). Key = SysfsPath.
type Block struct {
	mu     sync.Mutex
	daemon Daemon
	path   dbus.ObjectPath
	dev    device.Snapshot

	blockIface ifaceupdate.Slot
	fsIface    ifaceupdate.Slot

	log *logrus.Entry
}

// NewBlock constructs and publishes a Block object for dev, at a uniquely
// generated path.
func NewBlock(daemon Daemon, dev device.Snapshot) (*Block, error) {
	b := &Block{
		daemon: daemon,
		dev:    dev,
		log:    logrus.WithField("sysfs_path", dev.SysfsPath),
	}
	b.path = daemon.Server().NewPath("/org/freedesktop/UDisks2/block_devices/")
	b.Uevent("add", &dev)
	return b, nil
}

// ObjectPath implements ifaceupdate.Object.
func (b *Block) ObjectPath() dbus.ObjectPath { return b.path }

// Server implements ifaceupdate.Object.
func (b *Block) Server() busexport.Exporter { return b.daemon.Server() }

// Snapshot returns the currently cached device snapshot.
func (b *Block) Snapshot() device.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dev
}

// Uevent reacts to one (action, device) notification. A nil dev
// represents the synthetic
// external-config "change" used by fstab/crypttab fan-out: the cached
// snapshot is left untouched and only interfaces are refreshed.
func (b *Block) Uevent(action string, dev *device.Snapshot) {
	b.mu.Lock()
	if dev != nil {
		b.dev = *dev
	}
	b.mu.Unlock()

	if _, err := ifaceupdate.Apply(b, action, blockSpec, &b.blockIface); err != nil {
		b.log.WithError(err).Warn("failed to update Block interface")
	}
	if _, err := ifaceupdate.Apply(b, action, filesystemSpec, &b.fsIface); err != nil {
		b.log.WithError(err).Warn("failed to update Block.Filesystem interface")
	}
}

// Unpublish removes all interfaces this object ever exported. Called by
// the registry when the underlying device is removed (§4.5 block side).
func (b *Block) Unpublish() {
	if err := b.daemon.Server().Unexport(b.blockIface.Handle()); err != nil {
		b.log.WithError(err).Warn("failed to unexport Block interface")
	}
	if err := b.daemon.Server().Unexport(b.fsIface.Handle()); err != nil {
		b.log.WithError(err).Warn("failed to unexport Block.Filesystem interface")
	}
}

var blockSpec = ifaceupdate.Spec{
	InterfaceName: "org.freedesktop.UDisks2.Block",
	Has:           func(ifaceupdate.Object) bool { return true },
	New:           func(obj ifaceupdate.Object) interface{} { return &blockInterface{} },
	Update: func(obj ifaceupdate.Object, action string, impl interface{}) (bool, error) {
		b := obj.(*Block)
		iface := impl.(*blockInterface)
		snap := b.Snapshot()
		changed := iface.Device != snap.SysfsPath
		iface.Device = snap.SysfsPath
		iface.IdSerial = snap.Identity().Serial
		return changed, nil
	},
}

var filesystemSpec = ifaceupdate.Spec{
	InterfaceName: "org.freedesktop.UDisks2.Block.Filesystem",
	Has: func(obj ifaceupdate.Object) bool {
		b := obj.(*Block)
		return b.daemon.IsMounted(b.Snapshot().SysfsPath)
	},
	New: func(obj ifaceupdate.Object) interface{} { return &filesystemInterface{} },
	Update: func(obj ifaceupdate.Object, action string, impl interface{}) (bool, error) {
		return true, nil
	},
}

// blockInterface is a minimal skeleton for org.freedesktop.UDisks2.Block;
// the concrete property/method surface is out of scope (§1 Out of scope).
type blockInterface struct {
	Device   string
	IdSerial string
}

// filesystemInterface is a minimal skeleton for
// org.freedesktop.UDisks2.Block.Filesystem.
type filesystemInterface struct{}
