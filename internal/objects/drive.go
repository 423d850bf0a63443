// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package objects

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/woodrow-shen/udisks/internal/busexport"
	"github.com/woodrow-shen/udisks/internal/device"
	"github.com/woodrow-shen/udisks/internal/ifaceupdate"
)

// Drive represents one drive identity (§4.3). Primary key = VPD.
type Drive struct {
	mu      sync.Mutex
	daemon  Daemon
	path    dbus.ObjectPath
	vpd     string
	members MemberSet

	lastHousekeeping time.Time

	driveIface ifaceupdate.Slot

	log *logrus.Entry
}

// ShouldIncludeDevice is the static classifier the registry calls before
// deciding whether to create a Drive object for dev (§4.5 drive side). It
// returns false for devices that should never correlate to a drive (e.g.
// partitions, which are covered by the whole-disk device), true with an
// empty vpd for devices that qualify in principle but lack identity, and
// true with a non-empty vpd otherwise.
func ShouldIncludeDevice(dev device.Snapshot) (include bool, vpd string) {
	if dev.Property("DEVTYPE") == "partition" {
		return false, ""
	}
	id := dev.Identity()
	if id.Empty() {
		return true, ""
	}
	return true, id.VPD()
}

// NewDrive constructs and publishes a Drive object for the given vpd tag,
// with dev as its first member.
func NewDrive(daemon Daemon, vpd string, dev device.Snapshot) *Drive {
	d := &Drive{
		daemon: daemon,
		vpd:    vpd,
		path:   daemon.Server().NewPath("/org/freedesktop/UDisks2/drives/"),
		log:    logrus.WithField("vpd", vpd),
	}
	d.Uevent("add", dev)
	return d
}

// ObjectPath implements ifaceupdate.Object.
func (d *Drive) ObjectPath() dbus.ObjectPath { return d.path }

// Server implements ifaceupdate.Object.
func (d *Drive) Server() busexport.Exporter { return d.daemon.Server() }

// VPD returns the immutable vpd tag attached at creation time (§4.5: "the
// vpd tag is recovered from a tag attached to the drive object at creation
// time").
func (d *Drive) VPD() string { return d.vpd }

// Devices returns the current member-device snapshots (ordered).
func (d *Drive) Devices() []device.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.members.Devices()
}

// Empty reports whether the member list is now empty (I1/G2).
func (d *Drive) Empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.members.Empty()
}

// Uevent folds one (action, device) notification into the member set and
// refreshes interfaces (§4.3).
func (d *Drive) Uevent(action string, dev device.Snapshot) {
	d.mu.Lock()
	d.members.Apply(action, dev)
	d.mu.Unlock()

	if _, err := ifaceupdate.Apply(d, action, driveSpec, &d.driveIface); err != nil {
		d.log.WithError(err).Warn("failed to update Drive interface")
	}
}

// Unpublish removes this drive's published interface. Called by the
// registry once the member list becomes empty (§4.5 drive side).
func (d *Drive) Unpublish() {
	if err := d.daemon.Server().Unexport(d.driveIface.Handle()); err != nil {
		d.log.WithError(err).Warn("failed to unexport Drive interface")
	}
}

// Housekeeping performs one periodic maintenance pass over this drive's
// members (§4.3, §4.6). It validates structural consistency rather than
// performing hardware I/O (direct hardware access is a non-goal, §1): a
// duplicate member is returned as an error, and a member whose sysfs path
// no longer resolves is logged as a warning. ctx may be canceled to abandon an in-flight pass
// early; a context.Background() (or any non-canceling context) means no
// cancellation, per §4.3/§5.
func (d *Drive) Housekeeping(ctx context.Context, secsSinceLast int64) error {
	members := d.Devices()

	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, dup := seen[m.SysfsPath]; dup {
			return fmt.Errorf("drive %s: duplicate member %s", d.vpd, m.SysfsPath)
		}
		seen[m.SysfsPath] = struct{}{}

		if _, err := os.Stat(m.SysfsPath); err != nil {
			d.log.WithField("member", m.SysfsPath).WithError(err).
				Warn("housekeeping: member sysfs path no longer resolves")
		}
	}

	d.mu.Lock()
	d.lastHousekeeping = time.Now()
	d.mu.Unlock()
	return nil
}

var driveSpec = ifaceupdate.Spec{
	InterfaceName: "org.freedesktop.UDisks2.Drive",
	Has:           func(ifaceupdate.Object) bool { return true },
	New:           func(obj ifaceupdate.Object) interface{} { return &driveInterface{} },
	Update: func(obj ifaceupdate.Object, action string, impl interface{}) (bool, error) {
		d := obj.(*Drive)
		iface := impl.(*driveInterface)
		count := len(d.Devices())
		changed := iface.MemberCount != count
		iface.MemberCount = count
		iface.VPD = d.vpd
		return changed, nil
	},
}

// driveInterface is a minimal skeleton for org.freedesktop.UDisks2.Drive;
// the concrete property/method surface is out of scope (§1 Out of scope).
type driveInterface struct {
	VPD         string
	MemberCount int
}
