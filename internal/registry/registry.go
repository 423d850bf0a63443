// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package registry is the registry and lifecycle engine (§4.5, C7): it
// demultiplexes kernel uevents, maintains the sysfs/vpd/uuid indexes,
// enforces the drive-before-block (and block-before-drive on remove)
// ordering rule, runs the coldplug protocol, drives the housekeeping
// scheduler, and fans out external-configuration changes.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/woodrow-shen/udisks/internal/busexport"
	"github.com/woodrow-shen/udisks/internal/cleanup"
	"github.com/woodrow-shen/udisks/internal/device"
	"github.com/woodrow-shen/udisks/internal/metrics"
	"github.com/woodrow-shen/udisks/internal/objects"
	"github.com/woodrow-shen/udisks/internal/uevent"
)

// ManagerPath is the fixed object path for the Manager object (§6).
const ManagerPath = "/org/freedesktop/UDisks2/Manager"

// managerSkeleton is a minimal placeholder for
// org.freedesktop.UDisks2.Manager; its method surface (resolve-device,
// loop-setup, ...) is out of scope (§1 Out of scope).
type managerSkeleton struct{}

// Registry owns the three (four, with MD-RAID) indexes and is the single
// process-wide lock holder (§5: "The registry mutex is the only
// process-wide lock").
type Registry struct {
	mu sync.Mutex

	server  busexport.Exporter
	cleanup *cleanup.Checker
	metrics *metrics.Collectors
	log     *logrus.Entry

	coldplug bool

	sysfsToBlock     map[string]*objects.Block
	vpdToDrive       map[string]*objects.Drive
	sysfsPathToDrive map[string]*objects.Drive
	uuidToMDRaid     map[string]*objects.MDRaid

	housekeepingRunning bool
	housekeepingLastRun time.Time
	housekeepingTicker  *time.Ticker
}

// New constructs a Registry. Call Start to run coldplug and begin serving
// events.
func New(server busexport.Exporter, checker *cleanup.Checker, collectors *metrics.Collectors) *Registry {
	return &Registry{
		server:           server,
		cleanup:          checker,
		metrics:          collectors,
		log:              logrus.WithField("component", "registry"),
		sysfsToBlock:     make(map[string]*objects.Block),
		vpdToDrive:       make(map[string]*objects.Drive),
		sysfsPathToDrive: make(map[string]*objects.Drive),
		uuidToMDRaid:     make(map[string]*objects.MDRaid),
	}
}

// Server implements objects.Daemon.
func (r *Registry) Server() busexport.Exporter { return r.server }

// IsMounted implements objects.Daemon.
func (r *Registry) IsMounted(sysfsPath string) bool { return r.cleanup.IsMounted(sysfsPath) }

// Start runs the coldplug protocol (§4.5 Start/coldplug) and begins
// consuming uevents from src until ctx is done.
func (r *Registry) Start(ctx context.Context, src *uevent.Source) error {
	r.mu.Lock()
	r.coldplug = true
	r.mu.Unlock()

	if _, err := r.server.Export(ManagerPath, "org.freedesktop.UDisks2.Manager", &managerSkeleton{}); err != nil {
		return wrapErr(KindInternal, "export manager", err)
	}

	initial, err := uevent.EnumerateSubsystem("block")
	if err != nil {
		r.log.WithError(err).Warn("coldplug enumeration failed")
	}
	for _, dev := range initial {
		r.handleBlockUevent("add", dev)
	}

	r.startHousekeepingScheduler(ctx)

	r.mu.Lock()
	r.coldplug = false
	r.mu.Unlock()

	events := make(chan uevent.Event, 64)
	go func() {
		if err := src.Run(ctx, events); err != nil && ctx.Err() == nil {
			r.log.WithError(err).Error("uevent source terminated")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			r.route(ev)
		}
	}
}

// route dispatches one uevent from the event source. Only the "block"
// subsystem is handled by this core (§4.5 Event routing); other
// subsystems are ignored.
func (r *Registry) route(ev uevent.Event) {
	if ev.Device.Subsystem != "block" {
		return
	}
	r.handleBlockUevent(ev.Action, ev.Device)
}

// handleBlockUevent applies the §4.5 ordering rule and post-event cleanup
// trigger. The registry mutex is held for the entire call (§5): drive
// side, block side, MD-RAID side, and the post-cleanup trigger.
func (r *Registry) handleBlockUevent(action string, dev device.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if action == "remove" {
		r.handleBlockUeventForBlock(action, dev)
		r.handleBlockUeventForDrive(action, dev)
		r.handleBlockUeventForMDRaid(action, dev)
	} else {
		r.handleBlockUeventForDrive(action, dev)
		r.handleBlockUeventForBlock(action, dev)
		r.handleBlockUeventForMDRaid(action, dev)
	}

	if action != "add" {
		if err := r.cleanup.Check(context.Background()); err != nil {
			r.log.WithError(err).Warn("cleanup check failed")
		}
	}

	if r.metrics != nil {
		r.metrics.UeventsProcessed.WithLabelValues(action).Inc()
		r.metrics.BlocksPublished.Set(float64(len(r.sysfsToBlock)))
		r.metrics.DrivesPublished.Set(float64(len(r.vpdToDrive)))
		r.metrics.MDRaidsPublished.Set(float64(len(r.uuidToMDRaid)))
	}
}

// handleBlockUeventForDrive implements §4.5 "Drive side". Caller holds
// r.mu.
func (r *Registry) handleBlockUeventForDrive(action string, dev device.Snapshot) {
	if action == "remove" {
		d, ok := r.sysfsPathToDrive[dev.SysfsPath]
		if !ok {
			return
		}
		d.Uevent("remove", dev)
		delete(r.sysfsPathToDrive, dev.SysfsPath)
		if d.Empty() {
			d.Unpublish()
			delete(r.vpdToDrive, d.VPD())
		}
		return
	}

	include, vpd := objects.ShouldIncludeDevice(dev)
	if !include {
		return
	}
	if vpd == "" {
		r.log.WithField("sysfs_path", dev.SysfsPath).Debug("no serial or WWN")
		return
	}

	if d, ok := r.vpdToDrive[vpd]; ok {
		if _, exists := r.sysfsPathToDrive[dev.SysfsPath]; !exists {
			r.sysfsPathToDrive[dev.SysfsPath] = d
		}
		d.Uevent(action, dev)
		return
	}

	d := objects.NewDrive(r, vpd, dev)
	r.vpdToDrive[vpd] = d
	r.sysfsPathToDrive[dev.SysfsPath] = d

	if !r.coldplug {
		go func() {
			if err := d.Housekeeping(context.Background(), 0); err != nil {
				r.log.WithField("vpd", vpd).WithError(err).
					Warn("initial housekeeping failed")
			}
		}()
	}
}

// handleBlockUeventForBlock implements §4.5 "Block side". Caller holds
// r.mu.
func (r *Registry) handleBlockUeventForBlock(action string, dev device.Snapshot) {
	if action == "remove" {
		if b, ok := r.sysfsToBlock[dev.SysfsPath]; ok {
			b.Unpublish()
			delete(r.sysfsToBlock, dev.SysfsPath)
		}
		return
	}

	if b, ok := r.sysfsToBlock[dev.SysfsPath]; ok {
		b.Uevent(action, &dev)
		return
	}

	b, err := objects.NewBlock(r, dev)
	if err != nil {
		r.log.WithField("sysfs_path", dev.SysfsPath).WithError(err).Warn("failed to publish block object")
		return
	}
	r.sysfsToBlock[dev.SysfsPath] = b
}

// handleBlockUeventForMDRaid implements the MD-RAID correlation described
// in SPEC_FULL.md §4.5 "MD-RAID side". The drive-then-block-then-mdraid
// ordering it is folded into comes from udiskslinuxprovider.c's
// handle_block_uevent; the per-array membership logic below is grounded
// on udiskslinuxmdraidobject.c's own uevent handler instead, since the
// provider file has no MD-RAID-specific uevent handler of its own. Caller
// holds r.mu.
func (r *Registry) handleBlockUeventForMDRaid(action string, dev device.Snapshot) {
	if action == "remove" {
		uuid := dev.MDUUID()
		m, ok := r.uuidToMDRaid[uuid]
		if !ok || uuid == "" {
			// The kernel commonly strips properties from a disappearing
			// device, so MD_UUID may be gone by the time remove arrives.
			// Fall back to scanning for an array that still lists this
			// sysfs path as a member (§9 Open Questions: guard against
			// the property being absent rather than logging a nil
			// reference).
			for candidateUUID, candidate := range r.uuidToMDRaid {
				if candidate.HasMember(dev.SysfsPath) {
					uuid, m = candidateUUID, candidate
					break
				}
			}
		}
		if m == nil {
			// A remove for an unknown sysfs_path on the MD-RAID side
			// (§7): most block devices are never array members, but an
			// unmatched remove is still logged rather than swallowed.
			r.log.WithField("sysfs_path", dev.SysfsPath).Warn("remove for unknown MD-RAID member")
			return
		}
		m.Uevent("remove", dev)
		if m.Empty() {
			m.Unpublish()
			delete(r.uuidToMDRaid, uuid)
		}
		return
	}

	uuid := dev.MDUUID()
	if uuid == "" {
		return
	}
	if m, ok := r.uuidToMDRaid[uuid]; ok {
		m.Uevent(action, dev)
		return
	}
	r.uuidToMDRaid[uuid] = objects.NewMDRaid(r, uuid, dev)
}

// UpdateAllBlockObjects implements the §4.5 external-config fan-out:
// snapshot the current set of block objects under lock, release the
// lock, then send each a synthetic ("change", nil) uevent. This
// snapshot-then-release-lock pattern is mandatory to avoid holding the
// registry lock across interface callbacks.
func (r *Registry) UpdateAllBlockObjects() {
	r.mu.Lock()
	blocks := make([]*objects.Block, 0, len(r.sysfsToBlock))
	for _, b := range r.sysfsToBlock {
		blocks = append(blocks, b)
	}
	r.mu.Unlock()

	for _, b := range blocks {
		b.Uevent("change", nil)
	}
}
