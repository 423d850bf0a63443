// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodrow-shen/udisks/internal/busexport/busexporttest"
	"github.com/woodrow-shen/udisks/internal/cleanup"
	"github.com/woodrow-shen/udisks/internal/device"
	"github.com/woodrow-shen/udisks/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestRegistry(t *testing.T) (*Registry, *busexporttest.Fake) {
	t.Helper()
	exporter := busexporttest.NewFake()
	reg := New(exporter, cleanup.New(), metrics.New(prometheus.NewRegistry()))
	return reg, exporter
}

func diskDev(path, serial, wwn string) device.Snapshot {
	return device.Snapshot{
		Subsystem: "block",
		SysfsPath: path,
		Properties: map[string]string{
			"ID_SERIAL_SHORT": serial,
			"ID_WWN":          wwn,
		},
	}
}

// Scenario 1: bare add/remove.
func TestScenarioBareAddRemove(t *testing.T) {
	reg, _ := newTestRegistry(t)

	reg.handleBlockUevent("add", diskDev("/sys/block/sda", "S1", "W1"))

	require.Len(t, reg.vpdToDrive, 1)
	require.Len(t, reg.sysfsPathToDrive, 1)
	require.Len(t, reg.sysfsToBlock, 1)
	_, ok := reg.sysfsPathToDrive["/sys/block/sda"]
	assert.True(t, ok)

	reg.handleBlockUevent("remove", diskDev("/sys/block/sda", "S1", "W1"))

	assert.Len(t, reg.vpdToDrive, 0)
	assert.Len(t, reg.sysfsPathToDrive, 0)
	assert.Len(t, reg.sysfsToBlock, 0)
}

// Scenario 2: multi-path drive.
func TestScenarioMultiPathDrive(t *testing.T) {
	reg, _ := newTestRegistry(t)

	reg.handleBlockUevent("add", diskDev("/sys/block/sda", "S1", "W1"))
	reg.handleBlockUevent("add", diskDev("/sys/block/sdb", "S1", "W1"))

	require.Len(t, reg.vpdToDrive, 1)
	require.Len(t, reg.sysfsPathToDrive, 2)
	require.Len(t, reg.sysfsToBlock, 2)

	reg.handleBlockUevent("remove", diskDev("/sys/block/sda", "S1", "W1"))
	assert.Len(t, reg.vpdToDrive, 1, "drive survives while one member remains")
	assert.Len(t, reg.sysfsPathToDrive, 1)

	reg.handleBlockUevent("remove", diskDev("/sys/block/sdb", "S1", "W1"))
	assert.Len(t, reg.vpdToDrive, 0, "drive is unpublished once the last member is gone")
	assert.Len(t, reg.sysfsPathToDrive, 0)
}

// Scenario 3: identity-less device.
func TestScenarioIdentityLessDevice(t *testing.T) {
	reg, _ := newTestRegistry(t)

	reg.handleBlockUevent("add", device.Snapshot{Subsystem: "block", SysfsPath: "/sys/block/loop0"})

	assert.Len(t, reg.vpdToDrive, 0)
	assert.Len(t, reg.sysfsPathToDrive, 0)
	assert.Len(t, reg.sysfsToBlock, 1, "a block object is still created")
}

// Scenario 5: config fan-out.
func TestScenarioConfigFanOut(t *testing.T) {
	reg, _ := newTestRegistry(t)

	reg.handleBlockUevent("add", diskDev("/sys/block/sda", "S1", "W1"))
	reg.handleBlockUevent("add", diskDev("/sys/block/sdb", "S2", "W2"))
	reg.handleBlockUevent("add", diskDev("/sys/block/sdc", "S3", "W3"))
	require.Len(t, reg.sysfsToBlock, 3)

	reg.UpdateAllBlockObjects()

	// No index mutation occurs from a pure config fan-out.
	assert.Len(t, reg.sysfsToBlock, 3)
	assert.Len(t, reg.vpdToDrive, 3)
}

// (P9) Ordering rule: on remove, the block side's unpublish must be visible
// before the drive side's back-reference is cleared has no externally
// observable order difference here since both mutate disjoint maps, but
// we assert both mutations do take effect within a single handleBlockUevent
// call (they are not deferred or reordered across calls).
func TestOrderingRuleBothSidesMutateWithinOneCall(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.handleBlockUevent("add", diskDev("/sys/block/sda", "S1", "W1"))
	require.Len(t, reg.sysfsToBlock, 1)
	require.Len(t, reg.sysfsPathToDrive, 1)

	reg.handleBlockUevent("remove", diskDev("/sys/block/sda", "S1", "W1"))
	assert.Len(t, reg.sysfsToBlock, 0)
	assert.Len(t, reg.sysfsPathToDrive, 0)
}

// (P6) change on an existing device does not alter index membership; only
// the cached snapshot updates.
func TestChangeDoesNotAlterIndexMembership(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.handleBlockUevent("add", diskDev("/sys/block/sda", "S1", "W1"))

	reg.handleBlockUevent("change", diskDev("/sys/block/sda", "S1", "W1"))

	assert.Len(t, reg.vpdToDrive, 1)
	assert.Len(t, reg.sysfsPathToDrive, 1)
	assert.Len(t, reg.sysfsToBlock, 1)
}

// (P7/P8) coldplug suppresses initial housekeeping scheduling, and the
// housekeeping single-flight flag gates a tick while a pass is running.
func TestColdplugFlagAndSingleFlightGate(t *testing.T) {
	reg, _ := newTestRegistry(t)

	reg.mu.Lock()
	reg.coldplug = true
	reg.mu.Unlock()
	reg.handleBlockUevent("add", diskDev("/sys/block/sda", "S1", "W1"))
	// We cannot directly observe "no goroutine was spawned", but we can
	// assert the drive was created regardless.
	assert.Len(t, reg.vpdToDrive, 1)

	reg.mu.Lock()
	reg.housekeepingRunning = true
	reg.mu.Unlock()
	reg.tick()
	reg.mu.Lock()
	stillRunningFlagUnchanged := reg.housekeepingRunning
	reg.mu.Unlock()
	assert.True(t, stillRunningFlagUnchanged, "a tick observing running=true must not enqueue a second pass")
}

// MD-RAID correlation: a block device carrying MD_UUID is folded into an
// MD-RAID object distinct from its drive/block objects (P10).
func TestMDRaidCorrelationAlongsideDriveAndBlock(t *testing.T) {
	reg, _ := newTestRegistry(t)

	dev := diskDev("/sys/block/md0p1", "S1", "W1")
	dev.Properties["MD_UUID"] = "uuid-1"

	reg.handleBlockUevent("add", dev)

	assert.Len(t, reg.vpdToDrive, 1)
	assert.Len(t, reg.sysfsToBlock, 1)
	assert.Len(t, reg.uuidToMDRaid, 1)

	reg.handleBlockUevent("remove", dev)
	assert.Len(t, reg.uuidToMDRaid, 0)
}

// MD-RAID remove fallback: MD_UUID absent on the removed snapshot (kernel
// stripped properties) still finds and clears the array via the member
// scan (§4.5 MD-RAID side, §9 Open Questions).
func TestMDRaidRemoveFallbackWhenUUIDPropertyMissing(t *testing.T) {
	reg, _ := newTestRegistry(t)

	dev := diskDev("/sys/block/md0p1", "S1", "W1")
	dev.Properties["MD_UUID"] = "uuid-1"
	reg.handleBlockUevent("add", dev)
	require.Len(t, reg.uuidToMDRaid, 1)

	strippedRemove := device.Snapshot{Subsystem: "block", SysfsPath: "/sys/block/md0p1"}
	reg.handleBlockUevent("remove", strippedRemove)

	assert.Len(t, reg.uuidToMDRaid, 0)
}

// A remove for an unknown sysfs_path on the MD-RAID side logs a warning
// and is otherwise ignored (§7): it does not panic, and it leaves the
// index untouched since there is nothing to erase.
func TestMDRaidRemoveUnknownPathLogsAndIsIgnored(t *testing.T) {
	reg, _ := newTestRegistry(t)
	assert.NotPanics(t, func() {
		reg.handleBlockUevent("remove", device.Snapshot{Subsystem: "block", SysfsPath: "/sys/block/sdz"})
	})
	assert.Len(t, reg.uuidToMDRaid, 0)
}
